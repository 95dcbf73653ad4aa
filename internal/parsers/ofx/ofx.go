// Package ofx parses OFX/QFX statement exports into canonical transactions.
//
// Well-formed files go through the ofxgo parser. Brazilian bank exports are
// frequently OFX 1.x SGML that strict parsers reject (unclosed tags, stray
// headers), so rejection falls back to a lenient scanner that extracts
// <STMTTRN> blocks directly and tolerates malformed individual blocks.
package ofx

import (
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/contabil/contabil/internal/domain"
)

// fallbackDescription is used when a transaction carries neither NAME nor
// MEMO.
const fallbackDescription = "Transação sem descrição"

// Parse extracts every statement transaction from OFX content. Malformed
// individual blocks are skipped with a logged warning and never abort the
// file; empty input yields an empty slice.
func Parse(content string) ([]domain.Transaction, error) {
	if strings.TrimSpace(content) == "" {
		return []domain.Transaction{}, nil
	}

	if txns, err := parseStrict(content); err == nil {
		return txns, nil
	}

	return parseLenient(content), nil
}

// parseStrict runs the content through ofxgo and converts bank and credit
// card statement transactions.
func parseStrict(content string) ([]domain.Transaction, error) {
	resp, err := ofxgo.ParseResponse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}

	var lists []*ofxgo.TransactionList
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			lists = append(lists, stmt.BankTranList)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			lists = append(lists, stmt.BankTranList)
		}
	}

	transactions := []domain.Transaction{}
	for _, list := range lists {
		for _, txn := range list.Transactions {
			converted, ok := convertStrict(txn)
			if !ok {
				continue
			}
			transactions = append(transactions, *converted)
		}
	}
	return transactions, nil
}

// convertStrict maps an ofxgo transaction to the canonical model.
func convertStrict(txn ofxgo.Transaction) (*domain.Transaction, bool) {
	date := txn.DtPosted.Time
	if date.IsZero() {
		date = txn.DtUser.Time
	}
	if date.IsZero() {
		log.Printf("Warning: OFX transaction %s skipped: missing date", txn.FiTID.String())
		return nil, false
	}
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	amount, err := decimal.NewFromString(txn.TrnAmt.FloatString(2))
	if err != nil {
		log.Printf("Warning: OFX transaction %s skipped: bad amount: %v", txn.FiTID.String(), err)
		return nil, false
	}

	description := strings.TrimSpace(txn.Name.String())
	if description == "" {
		description = strings.TrimSpace(txn.Memo.String())
	}
	if description == "" {
		description = fallbackDescription
	}

	converted, err := domain.NewTransaction(date, description, amount)
	if err != nil {
		log.Printf("Warning: OFX transaction %s skipped: %v", txn.FiTID.String(), err)
		return nil, false
	}
	return converted, true
}

// stmtTrnPattern matches one transaction block. OFX SGML tags are not
// XML-closed, so scalar values run up to the next "<".
var (
	stmtTrnPattern = regexp.MustCompile(`(?s)<STMTTRN>(.*?)</STMTTRN>`)
	tagPatterns    = map[string]*regexp.Regexp{
		"TRNTYPE":  regexp.MustCompile(`<TRNTYPE>([^<]+)`),
		"DTPOSTED": regexp.MustCompile(`<DTPOSTED>([^<]+)`),
		"TRNAMT":   regexp.MustCompile(`<TRNAMT>([^<]+)`),
		"FITID":    regexp.MustCompile(`<FITID>([^<]+)`),
		"MEMO":     regexp.MustCompile(`<MEMO>([^<]+)`),
		"NAME":     regexp.MustCompile(`<NAME>([^<]+)`),
	}
)

// parseLenient scans <STMTTRN> blocks by pattern matching. A block missing
// DTPOSTED or TRNAMT fails that block only.
func parseLenient(content string) []domain.Transaction {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	blocks := stmtTrnPattern.FindAllStringSubmatch(normalized, -1)
	transactions := make([]domain.Transaction, 0, len(blocks))

	for _, block := range blocks {
		txn, err := parseBlock(block[1])
		if err != nil {
			log.Printf("Warning: OFX block skipped: %v", err)
			continue
		}
		transactions = append(transactions, *txn)
	}
	return transactions
}

// parseBlock converts one STMTTRN block body to a transaction.
func parseBlock(block string) (*domain.Transaction, error) {
	fields := make(map[string]string, len(tagPatterns))
	for tag, re := range tagPatterns {
		if m := re.FindStringSubmatch(block); m != nil {
			fields[tag] = strings.TrimSpace(m[1])
		}
	}

	posted := fields["DTPOSTED"]
	amountStr := fields["TRNAMT"]
	if posted == "" || amountStr == "" {
		return nil, &blockError{fields["FITID"], "missing DTPOSTED or TRNAMT"}
	}

	// DTPOSTED is YYYYMMDD optionally followed by time-of-day and timezone;
	// only the date matters at day granularity.
	if len(posted) < 8 {
		return nil, &blockError{fields["FITID"], "DTPOSTED too short"}
	}
	date, err := time.ParseInLocation("20060102", posted[:8], time.UTC)
	if err != nil {
		return nil, &blockError{fields["FITID"], "invalid DTPOSTED " + posted}
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, &blockError{fields["FITID"], "invalid TRNAMT " + amountStr}
	}

	description := fields["NAME"]
	if description == "" {
		description = fields["MEMO"]
	}
	if description == "" {
		description = fallbackDescription
	}

	return domain.NewTransaction(date, description, amount)
}

type blockError struct {
	fitID  string
	reason string
}

func (e *blockError) Error() string {
	if e.fitID != "" {
		return "transaction " + e.fitID + ": " + e.reason
	}
	return e.reason
}

// IsValidOFX reports whether content carries an OFX root marker or header
// token; used by format detection.
func IsValidOFX(content string) bool {
	return strings.Contains(content, "<OFX>") || strings.Contains(content, "OFXHEADER:")
}

// AccountInfo is the account identification block of an OFX export.
type AccountInfo struct {
	BankID      string
	AccountID   string
	AccountType string
}

var (
	bankIDPattern   = regexp.MustCompile(`<BANKID>([^<]+)`)
	acctIDPattern   = regexp.MustCompile(`<ACCTID>([^<]+)`)
	acctTypePattern = regexp.MustCompile(`<ACCTTYPE>([^<]+)`)
)

// ExtractAccountInfo pulls bank and account identifiers out of OFX content.
// Fields missing from the file are left empty.
func ExtractAccountInfo(content string) AccountInfo {
	info := AccountInfo{}
	if m := bankIDPattern.FindStringSubmatch(content); m != nil {
		info.BankID = strings.TrimSpace(m[1])
	}
	if m := acctIDPattern.FindStringSubmatch(content); m != nil {
		info.AccountID = strings.TrimSpace(m[1])
	}
	if m := acctTypePattern.FindStringSubmatch(content); m != nil {
		info.AccountType = strings.TrimSpace(m[1])
	}
	return info
}
