// Package ocrtext extracts the most probable amount, due date and
// description from unstructured bill text produced by an OCR engine.
//
// Extraction is inherently heuristic: it never fails on malformed or empty
// text, it just falls back to placeholders. Patterns carry explicit
// priorities because behavior depends on evaluation order: a labelled
// "valor a pagar" beats any bare currency token regardless of position or
// magnitude.
package ocrtext

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/contabil/contabil/internal/money"
)

// Extraction is the result of scanning one document's text.
type Extraction struct {
	Amount      decimal.Decimal
	Date        time.Time
	Description string
}

const (
	// fallbackDescription is used when the text is too short to be useful.
	fallbackDescription = "Despesa importada - ajuste os valores"
	descriptionLimit    = 200
	shortTextLimit      = 10
)

// Amounts outside (0, 1.000.000) are OCR noise, not bills.
var maxAmount = decimal.NewFromInt(1_000_000)

// defaultAmount is the placeholder when no pattern matches.
var defaultAmount = decimal.New(10000, -2)

// now is stubbed in tests.
var now = time.Now

type amountPattern struct {
	re       *regexp.Regexp
	priority int
}

// amountPatterns in evaluation order; the capture group is always a
// Brazilian-formatted value (1.234,56).
var amountPatterns = []amountPattern{
	{regexp.MustCompile(`(?i)(?:valor\s+a\s+pagar|total\s+a\s+pagar|valor\s+total)[:\s]+R?\$?\s*(\d{1,3}(?:\.\d{3})*,\d{2})`), 100},
	{regexp.MustCompile(`(?i)(?:vencimento|valor)[:\s]+R?\$?\s*(\d{1,3}(?:\.\d{3})*,\d{2})`), 90},
	{regexp.MustCompile(`(?i)total[:\s]+R?\$?\s*(\d{1,3}(?:\.\d{3})*,\d{2})`), 80},
	{regexp.MustCompile(`(?i)R\$\s*(\d{1,3}(?:\.\d{3})*,\d{2})`), 50},
	{regexp.MustCompile(`(\d{1,3}(?:\.\d{3})*,\d{2})`), 10},
}

type datePattern struct {
	re       *regexp.Regexp
	priority int
	// order describes the capture groups: "dmy", "dmy2" (two-digit year) or
	// "ymd".
	order string
}

var datePatterns = []datePattern{
	{regexp.MustCompile(`(?i)(?:vencimento|data\s+de\s+vencimento|pagar\s+este\s+documento\s+até)[:\s]+(\d{2})[/\-.](\d{2})[/\-.](\d{4})`), 100, "dmy"},
	{regexp.MustCompile(`(?i)venc\.[:\s]+(\d{2})[/\-.](\d{2})[/\-.](\d{4})`), 95, "dmy"},
	{regexp.MustCompile(`(?i)vencimento[:\s]+(\d{2})[/\-.](\d{2})[/\-.](\d{2})`), 90, "dmy2"},
	{regexp.MustCompile(`(\d{2})[/\-.](\d{2})[/\-.](\d{4})`), 50, "dmy"},
	{regexp.MustCompile(`(\d{4})[/\-.](\d{2})[/\-.](\d{2})`), 40, "ymd"},
}

type amountCandidate struct {
	value    decimal.Decimal
	priority int
}

type dateCandidate struct {
	date     time.Time
	priority int
}

// Extract scans bill text for the most probable amount and due date, and
// takes the leading text as the description. Absence of a match is normal,
// not an error: missing fields fall back to placeholders (amount 100,00,
// due date today).
func Extract(text string) Extraction {
	return Extraction{
		Amount:      extractAmount(text),
		Date:        extractDate(text),
		Description: extractDescription(text),
	}
}

func extractAmount(text string) decimal.Decimal {
	var candidates []amountCandidate

	for _, p := range amountPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			value, err := money.ParseAmount(m[1])
			if err != nil {
				continue
			}
			if !value.IsPositive() || !value.LessThan(maxAmount) {
				continue
			}
			candidates = append(candidates, amountCandidate{value: value, priority: p.priority})
		}
	}

	if len(candidates) == 0 {
		return defaultAmount
	}

	// Highest priority first; ties broken by the larger value.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority > candidates[j].priority
		}
		return candidates[i].value.GreaterThan(candidates[j].value)
	})
	return candidates[0].value
}

func extractDate(text string) time.Time {
	var candidates []dateCandidate

	for _, p := range datePatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			date, err := assembleDate(m, p.order)
			if err != nil {
				continue
			}
			candidates = append(candidates, dateCandidate{date: date, priority: p.priority})
		}
	}

	if len(candidates) == 0 {
		return today()
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].priority > candidates[j].priority
	})
	return candidates[0].date
}

func assembleDate(m []string, order string) (time.Time, error) {
	var dayStr, monthStr, yearStr string
	switch order {
	case "ymd":
		yearStr, monthStr, dayStr = m[1], m[2], m[3]
	default:
		dayStr, monthStr, yearStr = m[1], m[2], m[3]
	}

	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, err
	}
	if order == "dmy2" {
		year = expandYear(year)
	}

	raw := fmt.Sprintf("%04d-%s-%s", year, monthStr, dayStr)
	return money.ParseDate(raw, money.LayoutISO)
}

// expandYear widens a two-digit year with a fixed pivot: >50 is 19xx,
// otherwise 20xx.
func expandYear(yy int) int {
	if yy > 50 {
		return 1900 + yy
	}
	return 2000 + yy
}

func extractDescription(text string) string {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) <= shortTextLimit {
		return fallbackDescription
	}
	runes := []rune(trimmed)
	if len(runes) > descriptionLimit {
		runes = runes[:descriptionLimit]
	}
	return strings.TrimSpace(string(runes))
}

func today() time.Time {
	t := now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
