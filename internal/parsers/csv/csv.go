// Package csv parses delimited bank statement exports into canonical
// transactions using the per-institution layout registry.
package csv

import (
	"encoding/csv"
	"fmt"
	"log"
	"strings"

	"github.com/contabil/contabil/internal/banks"
	"github.com/contabil/contabil/internal/domain"
	"github.com/contabil/contabil/internal/money"
)

// Parse converts CSV content into canonical transactions. institution may be
// empty, in which case the originating bank is auto-detected from the
// content; an unresolvable institution is a hard error because the layout
// decides which columns mean what.
//
// Individual lines never abort the file: a line whose columns cannot be
// resolved or whose date/amount is malformed is skipped with a logged
// warning, and parsing continues. Partial success is acceptable.
func Parse(content string, institution string) ([]domain.Transaction, error) {
	key := institution
	if key == "" {
		key = banks.Detect(content)
	}
	layout, err := banks.Lookup(key)
	if err != nil {
		return nil, err
	}

	records, err := readRecords(content, layout.Delimiter)
	if err != nil {
		return nil, fmt.Errorf("reading %s CSV: %w", layout.Key, err)
	}
	if len(records) == 0 {
		return []domain.Transaction{}, nil
	}

	// Header detection: when the first field of the first record is not
	// numeric, line 1 is a header row and named columns resolve against it.
	var header map[string]int
	data := records
	if hasHeader(records[0]) {
		header = headerIndex(records[0])
		data = records[1:]
	}

	transactions := make([]domain.Transaction, 0, len(data))
	for i, record := range data {
		line := i + 1
		if header != nil {
			line++
		}

		txn, ok := parseRecord(record, layout, header, line)
		if !ok {
			continue
		}
		transactions = append(transactions, *txn)
	}
	return transactions, nil
}

// readRecords splits content into non-empty delimited records. Lenient
// reader settings tolerate the quoting quirks of real bank exports.
func readRecords(content string, delimiter rune) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(content))
	r.Comma = delimiter
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	all, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	records := make([][]string, 0, len(all))
	for _, rec := range all {
		if len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "") {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// hasHeader reports whether the first record looks like a header row: its
// first field does not start numerically. A leading digit counts as numeric
// so date-first layouts without headers (Nubank, Bradesco) keep their first
// data row.
func hasHeader(record []string) bool {
	if len(record) == 0 {
		return true
	}
	f := strings.TrimPrefix(strings.TrimSpace(record[0]), "-")
	return f == "" || f[0] < '0' || f[0] > '9'
}

// headerIndex builds a case-insensitive column-name to index map.
func headerIndex(record []string) map[string]int {
	idx := make(map[string]int, len(record))
	for i, name := range record {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return idx
}

// parseRecord converts one data record to a transaction, or reports a skip.
func parseRecord(record []string, layout banks.Layout, header map[string]int, line int) (*domain.Transaction, bool) {
	dateIdx := layout.Date.Resolve(header)
	descIdx := layout.Description.Resolve(header)
	amountIdx := layout.Amount.Resolve(header)

	if dateIdx < 0 || descIdx < 0 || amountIdx < 0 {
		log.Printf("Warning: line %d: statement columns not found for layout %s", line, layout.Key)
		return nil, false
	}

	dateStr := fieldAt(record, dateIdx)
	description := fieldAt(record, descIdx)
	amountStr := fieldAt(record, amountIdx)

	// Empty fields are normal in bank exports (balance rows, footers); skip
	// silently.
	if dateStr == "" || description == "" || amountStr == "" {
		return nil, false
	}

	date, err := money.ParseDate(dateStr, layout.DateLayout)
	if err != nil {
		log.Printf("Warning: line %d skipped: %v", line, err)
		return nil, false
	}

	amount, err := money.ParseAmount(amountStr)
	if err != nil {
		log.Printf("Warning: line %d skipped: %v", line, err)
		return nil, false
	}

	txn, err := domain.NewTransaction(date, description, amount)
	if err != nil {
		log.Printf("Warning: line %d skipped: %v", line, err)
		return nil, false
	}
	return txn, true
}

func fieldAt(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
