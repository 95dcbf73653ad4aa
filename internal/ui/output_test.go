package ui

import (
	"testing"
)

func TestCenter(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		width    int
		expected string
	}{
		{
			name:     "text shorter than width",
			text:     "Resumo",
			width:    16,
			expected: "     Resumo",
		},
		{
			name:     "text same as width",
			text:     "Resumo",
			width:    6,
			expected: "Resumo",
		},
		{
			name:     "text longer than width",
			text:     "Importação de extrato",
			width:    5,
			expected: "Importação de extrato",
		},
		{
			name:     "even padding",
			text:     "Test",
			width:    10,
			expected: "   Test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := center(tt.text, tt.width)
			if result != tt.expected {
				t.Errorf("center(%q, %d) = %q; want %q", tt.text, tt.width, result, tt.expected)
			}
		})
	}
}

func TestOutputFunctionsDoNotPanic(t *testing.T) {
	// Color output itself is not asserted; these guard the format strings.
	tests := []struct {
		name string
		fn   func()
	}{
		{name: "Header", fn: func() { Header("Importação de extrato") }},
		{name: "Step", fn: func() { Step(1, 3, "Detectando formato") }},
		{name: "Success", fn: func() { Success("%d despesas importadas", 5) }},
		{name: "Info", fn: func() { Info("Banco: %s", "itau") }},
		{name: "Warning", fn: func() { Warning("%d linhas ignoradas", 2) }},
		{name: "Error", fn: func() { Error("formato não suportado") }},
		{name: "BlueText", fn: func() { BlueText("itau") }},
		{name: "YellowText", fn: func() { YellowText("duplicada") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn()
		})
	}
}
