package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/contabil/contabil/internal/domain"
)

func TestNewEngine_ValidRules(t *testing.T) {
	rulesYAML := `
rules:
  - name: "luz-enel"
    pattern: "enel"
    match_type: "contains"
    priority: 200
    category: "Luz"
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	if len(engine.rules) != 1 {
		t.Errorf("NewEngine() rules count = %d, want 1", len(engine.rules))
	}

	rule := engine.rules[0]
	if rule.Name != "luz-enel" {
		t.Errorf("rule.Name = %s, want luz-enel", rule.Name)
	}
	if rule.Priority != 200 {
		t.Errorf("rule.Priority = %d, want 200", rule.Priority)
	}
	if rule.Category != "Luz" {
		t.Errorf("rule.Category = %s, want Luz", rule.Category)
	}
}

func TestNewEngine_InvalidCategory(t *testing.T) {
	rulesYAML := `
rules:
  - name: "invalid"
    pattern: "TEST"
    match_type: "contains"
    priority: 100
    category: "categoria_inexistente"
`
	_, err := NewEngine([]byte(rulesYAML))
	if err == nil {
		t.Error("NewEngine() expected error for invalid category")
	}
}

func TestNewEngine_InvalidPriority(t *testing.T) {
	tests := []struct {
		name     string
		priority string
	}{
		{"negative priority", "-1"},
		{"priority too high", "1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rulesYAML := `
rules:
  - name: "bad-priority"
    pattern: "TEST"
    match_type: "contains"
    priority: ` + tt.priority + `
    category: "Outros"
`
			_, err := NewEngine([]byte(rulesYAML))
			if err == nil {
				t.Errorf("NewEngine() expected error for priority %s", tt.priority)
			}
		})
	}
}

func TestNewEngine_InvalidMatchType(t *testing.T) {
	rulesYAML := `
rules:
  - name: "bad-match"
    pattern: "TEST"
    match_type: "regex"
    priority: 100
    category: "Outros"
`
	_, err := NewEngine([]byte(rulesYAML))
	if err == nil {
		t.Error("NewEngine() expected error for invalid match_type")
	}
}

func TestNewEngine_EmptyPattern(t *testing.T) {
	rulesYAML := `
rules:
  - name: "empty-pattern"
    pattern: "   "
    match_type: "contains"
    priority: 100
    category: "Outros"
`
	_, err := NewEngine([]byte(rulesYAML))
	if err == nil {
		t.Error("NewEngine() expected error for empty pattern")
	}
}

func TestNewEngine_MalformedYAML(t *testing.T) {
	_, err := NewEngine([]byte("rules:\n  - name: [unclosed"))
	if err == nil {
		t.Error("NewEngine() expected error for malformed YAML")
	}
}

func TestNewRule_Validation(t *testing.T) {
	if _, err := NewRule("ok", "mercado", MatchTypeContains, 160, "Alimentação"); err != nil {
		t.Fatalf("NewRule() error = %v", err)
	}
	if _, err := NewRule("bad", "mercado", MatchTypeContains, 160, "nope"); err == nil {
		t.Error("NewRule() expected error for invalid category")
	}
}

func TestEngine_Match_PriorityOrder(t *testing.T) {
	// Both patterns match the description; the higher priority rule wins.
	rulesYAML := `
rules:
  - name: "low"
    pattern: "net"
    match_type: "contains"
    priority: 180
    category: "Internet"
  - name: "high"
    pattern: "netflix"
    match_type: "contains"
    priority: 185
    category: "Assinaturas"
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	result, ok := engine.Match("PAGAMENTO NETFLIX.COM")
	if !ok {
		t.Fatal("Match() expected a match")
	}
	if result.Category != domain.CategoryAssinaturas {
		t.Errorf("Match() category = %s, want %s", result.Category, domain.CategoryAssinaturas)
	}
	if result.RuleName != "high" {
		t.Errorf("Match() rule = %s, want high", result.RuleName)
	}
}

func TestEngine_Match_StableOrderOnEqualPriority(t *testing.T) {
	rulesYAML := `
rules:
  - name: "first"
    pattern: "mercado"
    match_type: "contains"
    priority: 160
    category: "Alimentação"
  - name: "second"
    pattern: "mercado"
    match_type: "contains"
    priority: 160
    category: "Outros"
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	result, ok := engine.Match("MERCADO LIVRE")
	if !ok {
		t.Fatal("Match() expected a match")
	}
	if result.RuleName != "first" {
		t.Errorf("Match() rule = %s, want first (file order preserved)", result.RuleName)
	}
}

func TestEngine_Match_ExactType(t *testing.T) {
	rulesYAML := `
rules:
  - name: "exact-pix"
    pattern: "pix recebido"
    match_type: "exact"
    priority: 100
    category: "Outros"
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	if _, ok := engine.Match("  PIX RECEBIDO  "); !ok {
		t.Error("Match() exact should match after trim and fold")
	}
	if _, ok := engine.Match("PIX RECEBIDO DE FULANO"); ok {
		t.Error("Match() exact should not match a superset description")
	}
}

func TestEngine_Match_AccentFolding(t *testing.T) {
	engine, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}

	result, ok := engine.Match("FARMÁCIA SÃO PAULO")
	if !ok {
		t.Fatal("Match() expected accented description to match unaccented pattern")
	}
	if result.Category != domain.CategorySaude {
		t.Errorf("Match() category = %s, want %s", result.Category, domain.CategorySaude)
	}
}

func TestLoadEmbedded(t *testing.T) {
	engine, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}
	if len(engine.rules) == 0 {
		t.Error("LoadEmbedded() returned empty rule set")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	rulesYAML := `
rules:
  - name: "uber"
    pattern: "uber"
    match_type: "contains"
    priority: 140
    category: "Transporte"
`
	if err := os.WriteFile(path, []byte(rulesYAML), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	engine, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if len(engine.rules) != 1 {
		t.Errorf("LoadFromFile() rules count = %d, want 1", len(engine.rules))
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("LoadFromFile() expected error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to read rules file") {
		t.Errorf("LoadFromFile() error = %v, want read failure", err)
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        domain.Category
	}{
		{"energy provider", "PAGAMENTO ENEL SP", domain.CategoryLuz},
		{"water utility", "SABESP CONTA 03/2024", domain.CategoryAgua},
		{"streaming beats telecom token", "PAGAMENTO NETFLIX.COM", domain.CategoryAssinaturas},
		{"telecom", "NET SERVICOS", domain.CategoryInternet},
		{"ride hailing", "UBER* TRIP", domain.CategoryTransporte},
		{"food delivery beats ride hailing", "UBER EATS PEDIDO 123", domain.CategoryAlimentacao},
		{"grocery", "SUPERMERCADO EXTRA", domain.CategoryAlimentacao},
		{"pharmacy accented", "FARMÁCIA PAGUE MENOS", domain.CategorySaude},
		{"gas station", "POSTO SHELL BR 101", domain.CategoryTransporte},
		{"no match", "TRANSFERENCIA RECEBIDA", domain.CategoryOutros},
		{"empty", "", domain.CategoryOutros},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Categorize(tt.description); got != tt.want {
				t.Errorf("Categorize(%q) = %s, want %s", tt.description, got, tt.want)
			}
		})
	}
}
