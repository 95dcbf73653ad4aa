package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/contabil/contabil/internal/domain"
)

func withFlags(t *testing.T, input, userID, db string, dryRunVal bool) func() {
	t.Helper()
	oldInput, oldUser, oldDB, oldDryRun := *inputFile, *user, *dbPath, *dryRun
	*inputFile, *user, *dbPath, *dryRun = input, userID, db, dryRunVal
	return func() {
		*inputFile, *user, *dbPath, *dryRun = oldInput, oldUser, oldDB, oldDryRun
	}
}

func writeStatement(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "extrato.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

const itauStatement = "data;valor;descricao\n01/03/2024;-150,50;Conta de Luz ENEL\nextrato itau"

func TestRunImport_DryRun(t *testing.T) {
	path := writeStatement(t, itauStatement)
	db := filepath.Join(t.TempDir(), "contabil.db")
	defer withFlags(t, path, "user-1", db, true)()

	if err := runImport(); err != nil {
		t.Fatalf("runImport() error = %v", err)
	}

	// Dry run must not create the database.
	if _, err := os.Stat(db); !os.IsNotExist(err) {
		t.Error("runImport() dry run wrote the database")
	}
}

func TestRunImport_WritesExpenses(t *testing.T) {
	path := writeStatement(t, itauStatement)
	db := filepath.Join(t.TempDir(), "contabil.db")
	defer withFlags(t, path, "user-1", db, false)()

	if err := runImport(); err != nil {
		t.Fatalf("runImport() error = %v", err)
	}
	if _, err := os.Stat(db); err != nil {
		t.Errorf("runImport() did not create database: %v", err)
	}

	// A second run over the same file only skips.
	if err := runImport(); err != nil {
		t.Fatalf("runImport() second run error = %v", err)
	}
}

func TestRunImport_Directory(t *testing.T) {
	root := t.TempDir()
	// No detection token in the content; the directory name supplies the bank.
	itauDir := filepath.Join(root, "itau")
	if err := os.MkdirAll(itauDir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	content := "data;valor;descricao\n01/03/2024;-150,50;Conta de Luz ENEL"
	if err := os.WriteFile(filepath.Join(itauDir, "marco.csv"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	// A root-level CSV with no recognizable bank is warned about, not fatal.
	if err := os.WriteFile(filepath.Join(root, "solto.csv"), []byte("a;b;c\n1;2;3"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	db := filepath.Join(t.TempDir(), "contabil.db")
	defer withFlags(t, root, "user-1", db, false)()

	if err := runImport(); err != nil {
		t.Fatalf("runImport() error = %v", err)
	}
	if _, err := os.Stat(db); err != nil {
		t.Errorf("runImport() did not create database: %v", err)
	}
}

func TestRunImport_EmptyDirectory(t *testing.T) {
	defer withFlags(t, t.TempDir(), "user-1", filepath.Join(t.TempDir(), "db"), false)()

	if err := runImport(); err == nil {
		t.Error("runImport() expected error for directory without statements")
	}
}

func TestRunImport_MissingFile(t *testing.T) {
	defer withFlags(t, filepath.Join(t.TempDir(), "nope.csv"), "user-1", filepath.Join(t.TempDir(), "db"), false)()

	if err := runImport(); err == nil {
		t.Error("runImport() expected error for missing file")
	}
}

func TestRunImport_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fatura.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	defer withFlags(t, path, "user-1", filepath.Join(t.TempDir(), "db"), false)()

	if err := runImport(); err == nil {
		t.Error("runImport() expected error for pdf input")
	}
}

func TestPrintTotals(t *testing.T) {
	// Guards the format strings; output itself is not asserted.
	printTotals(nil)
	printTotals(map[domain.Category]decimal.Decimal{
		domain.CategoryLuz:    decimal.RequireFromString("150.50"),
		domain.CategoryOutros: decimal.RequireFromString("10.00"),
	})
}
