// Package scanner walks a directory tree and finds statement files for
// batch import.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/contabil/contabil/internal/banks"
	"github.com/contabil/contabil/internal/statement"
)

// Scanner walks a directory tree and finds statement files
type Scanner struct {
	rootDir string
}

// New creates a new scanner for the given root directory
func New(rootDir string) *Scanner {
	return &Scanner{rootDir: rootDir}
}

// Result is a found statement file. Bank is set when the file sits under a
// directory named after a registered institution ({root}/{bank}/file.csv);
// it overrides content-based detection during import.
type Result struct {
	Path string
	Bank string
}

// Scan walks the directory tree and finds all statement files
func (s *Scanner) Scan() ([]Result, error) {
	rootDir := s.expandHome(s.rootDir)

	var results []Result
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !statement.IsSupportedFile(path) {
			return nil
		}

		results = append(results, Result{
			Path: path,
			Bank: s.bankFromPath(path, rootDir),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	return results, nil
}

// bankFromPath reads the first directory under the root as an institution
// key. Directories that don't name a registered institution yield "", which
// leaves detection to the parser.
func (s *Scanner) bankFromPath(filePath, rootDir string) string {
	relPath, err := filepath.Rel(rootDir, filePath)
	if err != nil {
		return ""
	}

	parts := strings.Split(filepath.ToSlash(relPath), "/")
	if len(parts) < 2 {
		return ""
	}

	key := strings.ToLower(parts[0])
	if _, err := banks.Lookup(key); err != nil {
		return ""
	}
	return key
}

// expandHome expands ~ to home directory
func (s *Scanner) expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
