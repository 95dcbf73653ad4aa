// Package statement orchestrates statement ingestion: it classifies an
// uploaded file, dispatches to the matching parser, and normalizes the
// output into categorized canonical transactions.
package statement

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/contabil/contabil/internal/banks"
	"github.com/contabil/contabil/internal/domain"
	csvparser "github.com/contabil/contabil/internal/parsers/csv"
	"github.com/contabil/contabil/internal/parsers/ofx"
	"github.com/contabil/contabil/internal/rules"
)

// Format classifies an uploaded statement file
type Format string

const (
	FormatCSV Format = "csv"
	FormatOFX Format = "ofx"
	FormatPDF Format = "pdf"
)

// UnsupportedFormatError reports a file the statement pipeline cannot parse.
// PDF uploads are rejected here on purpose: scanned bills go through the OCR
// text pipeline instead.
type UnsupportedFormatError struct {
	FileName string
	Format   Format
}

func (e *UnsupportedFormatError) Error() string {
	if e.Format == FormatPDF {
		return fmt.Sprintf("unsupported format %q for %s: PDF statements must go through the OCR upload pipeline", e.Format, e.FileName)
	}
	return fmt.Sprintf("unsupported format %q for %s", e.Format, e.FileName)
}

// Result is the normalized output of parsing one statement file
type Result struct {
	Transactions []domain.Transaction
	Format       Format
	Bank         string // institution key for CSV statements, empty otherwise
}

// DetectFormat classifies a file by extension first, then by content
// sniffing, defaulting to CSV. Extension wins so a renamed export is
// still routed where the user pointed it.
func DetectFormat(fileName, content string) Format {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return FormatPDF
	case ".ofx", ".qfx":
		return FormatOFX
	}
	if ofx.IsValidOFX(content) {
		return FormatOFX
	}
	return FormatCSV
}

// Parse reads a statement file and returns its canonical transactions.
// Format-level failures (PDF, unrecognized bank) propagate to the caller;
// line-level failures are absorbed inside the parsers.
//
// Transactions that come out of a parser without a category are run through
// the rules engine, so every returned transaction carries one.
func Parse(fileName, content string) (*Result, error) {
	return ParseWithInstitution(fileName, content, "")
}

// ParseWithInstitution is Parse with an explicit institution key for CSV
// files, bypassing content-based bank detection.
func ParseWithInstitution(fileName, content, institution string) (*Result, error) {
	format := DetectFormat(fileName, content)

	result := &Result{Format: format}
	switch format {
	case FormatPDF:
		return nil, &UnsupportedFormatError{FileName: fileName, Format: format}
	case FormatOFX:
		txns, err := ofx.Parse(content)
		if err != nil {
			return nil, fmt.Errorf("parsing OFX statement %s: %w", fileName, err)
		}
		result.Transactions = txns
	case FormatCSV:
		result.Bank = institution
		if result.Bank == "" {
			result.Bank = banks.Detect(content)
		}
		txns, err := csvparser.Parse(content, result.Bank)
		if err != nil {
			return nil, fmt.Errorf("parsing CSV statement %s: %w", fileName, err)
		}
		result.Transactions = txns
	default:
		return nil, &UnsupportedFormatError{FileName: fileName, Format: format}
	}

	for i := range result.Transactions {
		if result.Transactions[i].Category == "" {
			result.Transactions[i].Category = rules.Categorize(result.Transactions[i].Description)
		}
	}

	return result, nil
}

// FilterExpenses keeps only debit transactions. Credits (refunds, incoming
// transfers) are not importable as expenses.
func FilterExpenses(txns []domain.Transaction) []domain.Transaction {
	expenses := make([]domain.Transaction, 0, len(txns))
	for _, txn := range txns {
		if txn.IsDebit() {
			expenses = append(expenses, txn)
		}
	}
	return expenses
}

// CalculateTotals sums the absolute amounts of debit transactions per
// category.
func CalculateTotals(txns []domain.Transaction) map[domain.Category]decimal.Decimal {
	totals := make(map[domain.Category]decimal.Decimal)
	for _, txn := range txns {
		if !txn.IsDebit() {
			continue
		}
		category := txn.Category
		if category == "" {
			category = domain.CategoryOutros
		}
		totals[category] = totals[category].Add(txn.Amount.Abs())
	}
	return totals
}

// IsSupportedFile reports whether the statement pipeline accepts the file
// based on its name alone. PDFs are excluded (OCR pipeline territory).
func IsSupportedFile(fileName string) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt", ".ofx", ".qfx":
		return true
	}
	return false
}
