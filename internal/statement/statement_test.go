package statement

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/contabil/contabil/internal/domain"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		content  string
		want     Format
	}{
		{"pdf extension", "fatura.pdf", "whatever", FormatPDF},
		{"pdf extension uppercase", "FATURA.PDF", "whatever", FormatPDF},
		{"ofx extension", "extrato.ofx", "", FormatOFX},
		{"qfx extension", "extrato.qfx", "", FormatOFX},
		{"ofx content sniff", "extrato.txt", "OFXHEADER:100\n<OFX>", FormatOFX},
		{"ofx root tag sniff", "download", "<OFX><BANKMSGSRSV1>", FormatOFX},
		{"csv default", "extrato.csv", "data;valor;descricao", FormatCSV},
		{"unknown defaults to csv", "extrato", "qualquer coisa", FormatCSV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.fileName, tt.content); got != tt.want {
				t.Errorf("DetectFormat(%q) = %s, want %s", tt.fileName, got, tt.want)
			}
		})
	}
}

func TestParse_PDFRejected(t *testing.T) {
	_, err := Parse("fatura.pdf", "%PDF-1.4")
	if err == nil {
		t.Fatal("Parse() expected error for PDF input")
	}
	var ufe *UnsupportedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("Parse() error = %T, want *UnsupportedFormatError", err)
	}
	if ufe.Format != FormatPDF {
		t.Errorf("error format = %s, want %s", ufe.Format, FormatPDF)
	}
}

func TestParse_CSVWithCategorization(t *testing.T) {
	content := "data;valor;descricao\n01/03/2024;-150,50;Conta de Luz ENEL\n05/03/2024;-89,90;PAGAMENTO NETFLIX.COM\nextrato itau"
	result, err := Parse("extrato.csv", content)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if result.Format != FormatCSV {
		t.Errorf("result.Format = %s, want csv", result.Format)
	}
	if result.Bank != "itau" {
		t.Errorf("result.Bank = %s, want itau", result.Bank)
	}
	if len(result.Transactions) != 2 {
		t.Fatalf("Parse() transactions = %d, want 2", len(result.Transactions))
	}
	if result.Transactions[0].Category != domain.CategoryLuz {
		t.Errorf("transaction 0 category = %s, want %s", result.Transactions[0].Category, domain.CategoryLuz)
	}
	if result.Transactions[1].Category != domain.CategoryAssinaturas {
		t.Errorf("transaction 1 category = %s, want %s", result.Transactions[1].Category, domain.CategoryAssinaturas)
	}
}

func TestParse_CSVUnknownBank(t *testing.T) {
	_, err := Parse("extrato.csv", "01/03/2024;-10,00;algo")
	if err == nil {
		t.Fatal("Parse() expected error for unrecognized bank")
	}
}

func TestParse_OFX(t *testing.T) {
	content := `OFXHEADER:100
<OFX><BANKMSGSRSV1><STMTTRNRS><STMTRS><BANKTRANLIST>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240315
<TRNAMT>-45.00
<NAME>POSTO SHELL
</STMTTRN>
</BANKTRANLIST></STMTRS></STMTTRNRS></BANKMSGSRSV1></OFX>`

	result, err := Parse("extrato.ofx", content)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Format != FormatOFX {
		t.Errorf("result.Format = %s, want ofx", result.Format)
	}
	if len(result.Transactions) != 1 {
		t.Fatalf("Parse() transactions = %d, want 1", len(result.Transactions))
	}
	if result.Transactions[0].Category != domain.CategoryTransporte {
		t.Errorf("category = %s, want %s", result.Transactions[0].Category, domain.CategoryTransporte)
	}
}

func mustDate(t *testing.T, iso string) time.Time {
	t.Helper()
	date, err := time.Parse("2006-01-02", iso)
	if err != nil {
		t.Fatalf("time.Parse(%q) error = %v", iso, err)
	}
	return date
}

func mustTxn(t *testing.T, date, desc, amount string, category domain.Category) domain.Transaction {
	t.Helper()
	txn, err := domain.NewTransaction(mustDate(t, date), desc, decimal.RequireFromString(amount))
	if err != nil {
		t.Fatalf("NewTransaction() error = %v", err)
	}
	txn.Category = category
	return *txn
}

func TestFilterExpenses(t *testing.T) {
	txns := []domain.Transaction{
		mustTxn(t, "2024-03-01", "Conta de Luz", "-150.50", domain.CategoryLuz),
		mustTxn(t, "2024-03-02", "Estorno compra", "89.90", domain.CategoryOutros),
		mustTxn(t, "2024-03-03", "Mercado", "-75.00", domain.CategoryAlimentacao),
	}

	expenses := FilterExpenses(txns)
	if len(expenses) != 2 {
		t.Fatalf("FilterExpenses() = %d transactions, want 2", len(expenses))
	}
	for _, txn := range expenses {
		if !txn.IsDebit() {
			t.Errorf("FilterExpenses() kept credit %q", txn.Description)
		}
	}
}

func TestCalculateTotals(t *testing.T) {
	txns := []domain.Transaction{
		mustTxn(t, "2024-03-01", "Conta de Luz", "-150.50", domain.CategoryLuz),
		mustTxn(t, "2024-03-02", "ENEL complemento", "-49.50", domain.CategoryLuz),
		mustTxn(t, "2024-03-03", "Mercado", "-75.00", domain.CategoryAlimentacao),
		mustTxn(t, "2024-03-04", "Estorno", "500.00", domain.CategoryOutros),
		mustTxn(t, "2024-03-05", "Sem categoria", "-10.00", ""),
	}

	totals := CalculateTotals(txns)

	if got, want := totals[domain.CategoryLuz], decimal.RequireFromString("200.00"); !got.Equal(want) {
		t.Errorf("totals[Luz] = %s, want %s", got, want)
	}
	if got, want := totals[domain.CategoryAlimentacao], decimal.RequireFromString("75.00"); !got.Equal(want) {
		t.Errorf("totals[Alimentação] = %s, want %s", got, want)
	}
	if got, want := totals[domain.CategoryOutros], decimal.RequireFromString("10.00"); !got.Equal(want) {
		t.Errorf("totals[Outros] = %s, want %s (credits excluded, uncategorized folded in)", got, want)
	}
}

func TestIsSupportedFile(t *testing.T) {
	tests := []struct {
		fileName string
		want     bool
	}{
		{"extrato.csv", true},
		{"extrato.txt", true},
		{"extrato.ofx", true},
		{"extrato.QFX", true},
		{"fatura.pdf", false},
		{"foto.png", false},
	}

	for _, tt := range tests {
		if got := IsSupportedFile(tt.fileName); got != tt.want {
			t.Errorf("IsSupportedFile(%q) = %v, want %v", tt.fileName, got, tt.want)
		}
	}
}
