package csv

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/contabil/contabil/internal/banks"
	"github.com/contabil/contabil/internal/domain"
)

func TestParse_ItauWithHeader(t *testing.T) {
	content := "data;valor;descricao\n01/03/2024;-150,50;Conta de Luz"

	txns, err := Parse(content, "itau")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("Parse() returned %d transactions, want 1", len(txns))
	}

	txn := txns[0]
	if want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC); !txn.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", txn.Date, want)
	}
	if want := decimal.RequireFromString("-150.50"); !txn.Amount.Equal(want) {
		t.Errorf("Amount = %s, want %s", txn.Amount, want)
	}
	if txn.Description != "Conta de Luz" {
		t.Errorf("Description = %q, want %q", txn.Description, "Conta de Luz")
	}
	if txn.Type != domain.TypeDebit {
		t.Errorf("Type = %s, want %s", txn.Type, domain.TypeDebit)
	}
}

func TestParse_NubankPositionalNoHeader(t *testing.T) {
	// Nubank exports have no header; columns are positional and dates ISO.
	content := "2024-03-01,-50.00,Mercado Central\n2024-03-02,1200.00,Salário"

	txns, err := Parse(content, "nubank")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("Parse() returned %d transactions, want 2", len(txns))
	}
	if txns[0].Type != domain.TypeDebit {
		t.Errorf("txns[0].Type = %s, want debit", txns[0].Type)
	}
	if txns[1].Type != domain.TypeCredit {
		t.Errorf("txns[1].Type = %s, want credit", txns[1].Type)
	}
	if txns[1].Description != "Salário" {
		t.Errorf("txns[1].Description = %q", txns[1].Description)
	}
}

func TestParse_AutoDetect(t *testing.T) {
	// ISO-shaped dates trigger the Nubank fallback heuristic.
	content := "2024-03-01,-50.00,Mercado Central"

	txns, err := Parse(content, "")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("Parse() returned %d transactions, want 1", len(txns))
	}
}

func TestParse_UnknownInstitution(t *testing.T) {
	_, err := Parse("data;valor;descricao\n01/03/2024;-1,00;x", "")
	if err == nil {
		t.Fatal("Parse() with undetectable institution expected error")
	}
	var uerr *banks.UnknownInstitutionError
	if !errors.As(err, &uerr) {
		t.Errorf("error type = %T, want *banks.UnknownInstitutionError", err)
	}
}

func TestParse_MalformedLineTolerance(t *testing.T) {
	// One bad amount must not abort the file; all other lines still parse.
	content := "data;valor;descricao\n" +
		"01/03/2024;-150,50;Conta de Luz\n" +
		"02/03/2024;not-a-number;Linha quebrada\n" +
		"03/03/2024;-89,90;Internet Fibra"

	txns, err := Parse(content, "itau")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("Parse() returned %d transactions, want 2", len(txns))
	}
	if txns[1].Description != "Internet Fibra" {
		t.Errorf("txns[1].Description = %q", txns[1].Description)
	}
}

func TestParse_SkipsEmptyFields(t *testing.T) {
	content := "data;valor;descricao\n" +
		"01/03/2024;;Sem valor\n" +
		";-10,00;Sem data\n" +
		"01/03/2024;-10,00;\n" +
		"02/03/2024;-20,00;Válida"

	txns, err := Parse(content, "itau")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(txns) != 1 || txns[0].Description != "Válida" {
		t.Fatalf("Parse() = %+v, want only the valid line", txns)
	}
}

func TestParse_MissingNamedColumn(t *testing.T) {
	// Header lacks the configured "valor" column: every line is skipped with
	// a warning, nothing parses, no error.
	content := "data;total;descricao\n01/03/2024;-150,50;Conta de Luz"

	txns, err := Parse(content, "itau")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(txns) != 0 {
		t.Fatalf("Parse() returned %d transactions, want 0", len(txns))
	}
}

func TestParse_Empty(t *testing.T) {
	txns, err := Parse("", "itau")
	if err != nil {
		t.Fatalf("Parse(\"\") error = %v", err)
	}
	if len(txns) != 0 {
		t.Errorf("Parse(\"\") returned %d transactions, want 0", len(txns))
	}
}

func TestParse_BlankLines(t *testing.T) {
	content := "\n\ndata;valor;descricao\n\n01/03/2024;-150,50;Conta de Luz\n\n"

	txns, err := Parse(content, "itau")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(txns) != 1 {
		t.Errorf("Parse() returned %d transactions, want 1", len(txns))
	}
}
