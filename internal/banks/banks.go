// Package banks holds the static registry of per-institution CSV statement
// layouts. Supporting a new bank means adding an entry here, not new code
// paths.
package banks

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/contabil/contabil/internal/money"
)

// ColumnRef identifies a CSV column either by header name (case-insensitive)
// or by position. Name takes precedence when non-empty.
type ColumnRef struct {
	Name  string
	Index int
}

// byName reports whether the column is resolved via the header map.
func (c ColumnRef) byName() bool { return c.Name != "" }

// Resolve maps the reference to a column index using the header name map
// built from the file's first line. Returns -1 when a named column is absent
// from the header.
func (c ColumnRef) Resolve(header map[string]int) int {
	if !c.byName() {
		return c.Index
	}
	if idx, ok := header[strings.ToLower(c.Name)]; ok {
		return idx
	}
	return -1
}

// Layout describes how one institution formats its CSV exports.
type Layout struct {
	Key         string
	Delimiter   rune
	Date        ColumnRef
	Description ColumnRef
	Amount      ColumnRef
	DateLayout  money.DateLayout

	// tokens are the case-insensitive substrings that identify this
	// institution's exports during auto-detection.
	tokens []string
}

// UnknownInstitutionError is returned when CSV content cannot be attributed
// to any registered institution. Fatal to the file: without a layout the
// parser cannot know which columns mean what.
type UnknownInstitutionError struct {
	Key string
}

func (e *UnknownInstitutionError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("unknown institution %q. Supported: %s", e.Key, strings.Join(Supported(), ", "))
	}
	return fmt.Sprintf("could not detect institution. Supported: %s", strings.Join(Supported(), ", "))
}

// layouts is keyed by institution key. Column positions and date layouts
// mirror each bank's real export format.
var layouts = map[string]Layout{}

// detectionOrder fixes the token scan order; earlier entries win when a file
// mentions more than one bank name.
var detectionOrder []string

func register(l Layout) {
	if l.Key == "" || l.Delimiter == 0 || len(l.tokens) == 0 {
		panic(fmt.Sprintf("banks: incomplete layout %+v", l))
	}
	if !money.ValidDateLayout(l.DateLayout) {
		panic(fmt.Sprintf("banks: layout %s has unknown date layout %q", l.Key, l.DateLayout))
	}
	if _, ok := layouts[l.Key]; ok {
		panic("banks: duplicate layout key " + l.Key)
	}
	layouts[l.Key] = l
	detectionOrder = append(detectionOrder, l.Key)
}

func init() {
	register(Layout{
		Key:         "nubank",
		Delimiter:   ',',
		Date:        ColumnRef{Index: 0},
		Description: ColumnRef{Index: 2},
		Amount:      ColumnRef{Index: 1},
		DateLayout:  money.LayoutISO,
		tokens:      []string{"nubank"},
	})
	register(Layout{
		Key:         "inter",
		Delimiter:   ',',
		Date:        ColumnRef{Name: "Data"},
		Description: ColumnRef{Name: "Descrição"},
		Amount:      ColumnRef{Name: "Valor"},
		DateLayout:  money.LayoutDMY,
		tokens:      []string{"banco inter", "inter"},
	})
	register(Layout{
		Key:         "itau",
		Delimiter:   ';',
		Date:        ColumnRef{Name: "data"},
		Description: ColumnRef{Name: "descricao"},
		Amount:      ColumnRef{Name: "valor"},
		DateLayout:  money.LayoutDMY,
		tokens:      []string{"itaú", "itau"},
	})
	register(Layout{
		Key:         "bradesco",
		Delimiter:   ';',
		Date:        ColumnRef{Index: 0},
		Description: ColumnRef{Index: 1},
		Amount:      ColumnRef{Index: 2},
		DateLayout:  money.LayoutDMY,
		tokens:      []string{"bradesco"},
	})
	register(Layout{
		Key:         "c6",
		Delimiter:   ',',
		Date:        ColumnRef{Name: "Data da transação"},
		Description: ColumnRef{Name: "Descrição"},
		Amount:      ColumnRef{Name: "Valor"},
		DateLayout:  money.LayoutDMY,
		tokens:      []string{"c6 bank", "c6"},
	})
}

// Lookup resolves an institution key to its layout. Lookup failure is a hard
// error, never a silent default.
func Lookup(key string) (Layout, error) {
	l, ok := layouts[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Layout{}, &UnknownInstitutionError{Key: key}
	}
	return l, nil
}

// Supported returns the registered institution keys, sorted.
func Supported() []string {
	keys := make([]string, 0, len(layouts))
	for k := range layouts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// isoDatePattern is the fallback heuristic for Nubank, whose exports carry no
// bank name but are the only supported layout with ISO-formatted dates.
var isoDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// Detect attributes CSV content to a registered institution by
// case-insensitive token scan, in registration order. Returns "" when no
// token matches; for CSV the caller must treat that as a hard failure.
func Detect(content string) string {
	lower := strings.ToLower(content)

	for _, key := range detectionOrder {
		l := layouts[key]
		for _, tok := range l.tokens {
			if strings.Contains(lower, tok) {
				return key
			}
		}
		if key == "nubank" && isoDatePattern.MatchString(lower) {
			return key
		}
	}
	return ""
}
