// Package rules provides a YAML-based rules engine for transaction categorization.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/contabil/contabil/internal/domain"
)

//go:embed rules.yaml
var embeddedRules []byte

// MatchType defines how patterns are matched against transaction descriptions
type MatchType string

const (
	// MatchTypeExact requires the pattern to match the entire description exactly
	MatchTypeExact MatchType = "exact"
	// MatchTypeContains requires the pattern to be a substring of the description
	MatchTypeContains MatchType = "contains"
)

// Rule represents a single categorization rule.
//
// Rules should be created via YAML loading (NewEngine, LoadEmbedded,
// LoadFromFile) or the NewRule constructor. Both validate all invariants:
//   - Priority in range [0, 999]
//   - Pattern must not be empty after trimming
//   - MatchType must be "exact" or "contains"
//   - Category must be a valid domain.Category
//
// Direct struct construction bypasses validation. Fields are exported for
// YAML unmarshaling and testing.
type Rule struct {
	Name      string    `yaml:"name"`
	Pattern   string    `yaml:"pattern"`
	MatchType MatchType `yaml:"match_type"`
	Priority  int       `yaml:"priority"`
	Category  string    `yaml:"category"`
}

// NewRule creates a validated rule for programmatic construction.
// YAML loading via NewEngine performs equivalent validation automatically.
func NewRule(name, pattern string, matchType MatchType, priority int, category string) (*Rule, error) {
	if err := validateRule(Rule{Name: name, Pattern: pattern, MatchType: matchType, Priority: priority, Category: category}); err != nil {
		return nil, err
	}
	return &Rule{
		Name:      name,
		Pattern:   pattern,
		MatchType: matchType,
		Priority:  priority,
		Category:  category,
	}, nil
}

func validateRule(rule Rule) error {
	if !domain.ValidateCategory(domain.Category(rule.Category)) {
		return fmt.Errorf("invalid category %q", rule.Category)
	}
	if rule.Priority < 0 || rule.Priority > 999 {
		return fmt.Errorf("priority must be in [0,999], got %d", rule.Priority)
	}
	if rule.MatchType != MatchTypeExact && rule.MatchType != MatchTypeContains {
		return fmt.Errorf("invalid match_type %q (must be 'exact' or 'contains')", rule.MatchType)
	}
	if strings.TrimSpace(rule.Pattern) == "" {
		return fmt.Errorf("pattern cannot be empty")
	}
	return nil
}

// RuleSet represents the top-level YAML structure
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// Engine performs rule matching on transaction descriptions
type Engine struct {
	rules []Rule // Sorted by priority (highest first)
}

// MatchResult contains the result of applying a rule
type MatchResult struct {
	Category domain.Category
	RuleName string // For debugging
}

// NewEngine creates a rules engine from YAML data
func NewEngine(rulesData []byte) (*Engine, error) {
	var ruleSet RuleSet
	if err := yaml.Unmarshal(rulesData, &ruleSet); err != nil {
		return nil, fmt.Errorf("failed to parse YAML rules (check syntax, indentation, and field names): %w", err)
	}

	for i, rule := range ruleSet.Rules {
		if err := validateRule(rule); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rule.Name, err)
		}
	}

	// Sort rules by priority (highest first). Use SliceStable to preserve YAML file
	// order for rules with equal priority (guarantees deterministic matching).
	sortedRules := make([]Rule, len(ruleSet.Rules))
	copy(sortedRules, ruleSet.Rules)
	sort.SliceStable(sortedRules, func(i, j int) bool {
		return sortedRules[i].Priority > sortedRules[j].Priority
	})

	return &Engine{
		rules: sortedRules,
	}, nil
}

// LoadEmbedded loads the embedded rules.yaml file
func LoadEmbedded() (*Engine, error) {
	engine, err := NewEngine(embeddedRules)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded rules (possible binary corruption): %w", err)
	}
	return engine, nil
}

// LoadFromFile loads rules from a filesystem path
func LoadFromFile(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	engine, err := NewEngine(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules from %q: %w", path, err)
	}
	return engine, nil
}

// foldTransformer strips combining marks so accented and plain spellings
// compare equal ("Água" and "agua" normalize to the same form).
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalize lowercases, trims, and accent-folds text before matching.
// Bank statement descriptions mix accented and unaccented spellings of the
// same merchant, so both sides of a match go through the same folding.
func normalize(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// Match applies rules to a transaction description and returns the first match.
// Rules are evaluated in priority order (highest first). Rules with equal priority
// are evaluated in their original YAML file order (stable sort in NewEngine preserves
// this ordering). Returns (nil, false) if no rules match.
func (e *Engine) Match(description string) (*MatchResult, bool) {
	normalizedDesc := normalize(description)

	for _, rule := range e.rules {
		normalizedPattern := normalize(rule.Pattern)

		matched := false
		switch rule.MatchType {
		case MatchTypeExact:
			matched = normalizedDesc == normalizedPattern
		case MatchTypeContains:
			matched = strings.Contains(normalizedDesc, normalizedPattern)
		}

		if matched {
			return &MatchResult{
				Category: domain.Category(rule.Category),
				RuleName: rule.Name,
			}, true
		}
	}

	return nil, false
}

var (
	defaultEngine     *Engine
	defaultEngineOnce sync.Once
	defaultEngineErr  error
)

// Categorize matches a description against the embedded rule set and returns
// the resulting category, or CategoryOutros when no rule matches.
func Categorize(description string) domain.Category {
	defaultEngineOnce.Do(func() {
		defaultEngine, defaultEngineErr = LoadEmbedded()
	})
	if defaultEngineErr != nil {
		return domain.CategoryOutros
	}
	if result, ok := defaultEngine.Match(description); ok {
		return result.Category
	}
	return domain.CategoryOutros
}
