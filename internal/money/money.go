// Package money provides locale-aware parsing of currency amounts and
// calendar dates as they appear in Brazilian bank exports.
package money

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParseError reports an input that could not be parsed as an amount or date.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q: %s", e.Input, e.Reason)
}

// currencySymbols strips the symbols seen in statement exports. "R$" must be
// replaced before "$" so the prefix is removed whole.
var currencySymbols = strings.NewReplacer("R$", "", "USD", "", "$", "", "€", "")

// ParseAmount converts a currency string to a decimal value.
//
// Separator disambiguation is a fixed policy, not configurable: when both ","
// and "." appear the input is Brazilian-formatted (1.234,56), so "." is a
// thousands separator and "," the decimal mark. When only "," appears it is
// the decimal mark. Otherwise the input is already machine-formatted.
func ParseAmount(raw string) (decimal.Decimal, error) {
	cleaned := currencySymbols.Replace(raw)
	cleaned = strings.Join(strings.Fields(cleaned), "")

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")

	switch {
	case hasComma && hasDot:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case hasComma:
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, &ParseError{Input: raw, Reason: "not a numeric amount"}
	}
	return d, nil
}

// FormatAmount renders a decimal in Brazilian style: "." for thousands
// grouping and "," as the decimal mark, always two decimal places.
// FormatAmount(ParseAmount(s)) round-trips two-decimal values exactly.
func FormatAmount(d decimal.Decimal) string {
	s := d.StringFixed(2)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}

	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(frac)
	return b.String()
}

// DateLayout tags the segment order of a date string.
type DateLayout string

const (
	LayoutDMY DateLayout = "DD/MM/YYYY"
	LayoutISO DateLayout = "YYYY-MM-DD"
	LayoutMDY DateLayout = "MM/DD/YYYY"
)

// ValidDateLayout reports whether the layout tag is recognized.
func ValidDateLayout(l DateLayout) bool {
	switch l {
	case LayoutDMY, LayoutISO, LayoutMDY:
		return true
	}
	return false
}

// ParseDate converts a date string to a calendar date (UTC midnight)
// according to the layout tag. Segments may be separated by "/" or "-".
// Malformed input (wrong segment count, non-numeric segment, out-of-range
// day or month) returns a *ParseError.
func ParseDate(raw string, layout DateLayout) (time.Time, error) {
	cleaned := strings.TrimSpace(raw)

	parts := strings.FieldsFunc(cleaned, func(r rune) bool {
		return r == '/' || r == '-'
	})
	if len(parts) != 3 {
		return time.Time{}, &ParseError{Input: raw, Reason: "expected 3 date segments"}
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, &ParseError{Input: raw, Reason: fmt.Sprintf("segment %q is not numeric", p)}
		}
		nums[i] = n
	}

	var year, month, day int
	switch layout {
	case LayoutDMY:
		day, month, year = nums[0], nums[1], nums[2]
	case LayoutISO:
		year, month, day = nums[0], nums[1], nums[2]
	case LayoutMDY:
		month, day, year = nums[0], nums[1], nums[2]
	default:
		return time.Time{}, &ParseError{Input: raw, Reason: fmt.Sprintf("unknown date layout %q", layout)}
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range components (e.g. month 13 rolls into
	// the next year), which would silently accept garbage. Reject anything
	// that does not round-trip.
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, &ParseError{Input: raw, Reason: "day or month out of range"}
	}
	return t, nil
}

// FormatDate renders a calendar date in the given layout, using the layout's
// native separator ("-" for ISO, "/" otherwise).
func FormatDate(t time.Time, layout DateLayout) string {
	switch layout {
	case LayoutISO:
		return t.Format("2006-01-02")
	case LayoutMDY:
		return t.Format("01/02/2006")
	default:
		return t.Format("02/01/2006")
	}
}
