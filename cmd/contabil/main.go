package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/contabil/contabil/internal/domain"
	"github.com/contabil/contabil/internal/importer"
	"github.com/contabil/contabil/internal/middleware"
	"github.com/contabil/contabil/internal/money"
	"github.com/contabil/contabil/internal/scanner"
	"github.com/contabil/contabil/internal/server"
	"github.com/contabil/contabil/internal/statement"
	"github.com/contabil/contabil/internal/store"
	"github.com/contabil/contabil/internal/ui"
)

const (
	version = "0.1.0"
)

var (
	// Global flags
	versionFlag = flag.Bool("version", false, "Show version")

	// Server flags
	serve  = flag.Bool("serve", false, "Run the HTTP API server")
	addr   = flag.String("addr", ":8080", "Address for -serve")
	origin = flag.String("origin", "*", "Allowed CORS origin for -serve")

	aggregatorURL = flag.String("aggregator-url", "", "Open Finance aggregator base URL (empty disables those routes)")
	aggregatorKey = flag.String("aggregator-key", "", "Open Finance aggregator API key")

	// Import flags
	inputFile = flag.String("input", "", "Statement file or directory to import (.csv, .ofx, .qfx, .txt)")
	user      = flag.String("user", "", "User id to import for (required with -input)")
	dbPath    = flag.String("db", "contabil.db", "SQLite database path")
	dryRun    = flag.Bool("dry-run", false, "Parse and show what would be imported without writing")
	verbose   = flag.Bool("verbose", false, "Show every parsed transaction")
)

func main() {
	// Custom usage message
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `contabil - bank statement import service

Usage:
  contabil [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Environment:
  CONTABIL_JWT_SECRET      HMAC key for API bearer tokens (required with -serve)
  CONTABIL_ENCRYPTION_KEY  hex-encoded 256-bit key for Open Finance tokens

Examples:
  # Import a statement for a user
  contabil -input extrato.csv -user maria -db contabil.db

  # See what an import would do, with every transaction
  contabil -input extrato.ofx -user maria -dry-run -verbose

  # Import a whole directory, using subdirectory names as bank hints
  contabil -input ~/extratos -user maria

  # Run the API server
  CONTABIL_JWT_SECRET=... contabil -serve -addr :8080

`)
	}

	flag.Parse()

	// Handle version flag
	if *versionFlag {
		fmt.Printf("contabil version %s\n", version)
		os.Exit(0)
	}

	if !*serve && *inputFile == "" {
		fmt.Fprintf(os.Stderr, "Error: either -serve or -input is required\n\n")
		flag.Usage()
		os.Exit(1)
	}
	if *inputFile != "" && *user == "" {
		fmt.Fprintf(os.Stderr, "Error: -user is required with -input\n\n")
		flag.Usage()
		os.Exit(1)
	}

	if *serve {
		if err := runServer(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runImport(); err != nil {
		ui.Error("%v", err)
		os.Exit(1)
	}
}

func runServer() error {
	secret := os.Getenv(middleware.EnvJWTSecret)
	if secret == "" {
		return fmt.Errorf("%s must be set to run the server", middleware.EnvJWTSecret)
	}

	srv, err := server.New(server.Config{
		DBPath:           *dbPath,
		JWTSecret:        []byte(secret),
		AllowedOrigin:    *origin,
		AggregatorURL:    *aggregatorURL,
		AggregatorAPIKey: *aggregatorKey,
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	log.Printf("Listening on %s (db: %s)", *addr, *dbPath)
	return http.ListenAndServe(*addr, srv.Handler())
}

func runImport() error {
	ui.Header("Importação de extrato")

	info, err := os.Stat(*inputFile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", *inputFile, err)
	}

	var files []scanner.Result
	if info.IsDir() {
		files, err = scanner.New(*inputFile).Scan()
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no statement files found in %s (supported: .csv, .txt, .ofx, .qfx)", *inputFile)
		}
	} else {
		if !statement.IsSupportedFile(*inputFile) {
			return fmt.Errorf("unsupported file %q (supported: .csv, .txt, .ofx, .qfx)", filepath.Base(*inputFile))
		}
		files = []scanner.Result{{Path: *inputFile}}
	}

	var db *store.DB
	if !*dryRun {
		db, err = store.Open(*dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	var total importer.Summary
	failedFiles := 0
	for i, file := range files {
		ui.Step(i+1, len(files), fmt.Sprintf("Importando %s", filepath.Base(file.Path)))

		summary, err := importFile(db, file)
		if err != nil {
			ui.Warning("%s: %v", filepath.Base(file.Path), err)
			failedFiles++
			continue
		}
		total.Imported += summary.Imported
		total.Skipped += summary.Skipped
		total.Failed += summary.Failed
		total.Total += summary.Total
	}

	if failedFiles == len(files) {
		return fmt.Errorf("no files could be imported")
	}

	if *dryRun {
		ui.Warning("Dry run: nada foi gravado (%d despesas seriam importadas)", total.Total)
		return nil
	}

	ui.Success("%s", total.Message())
	if total.Failed > 0 {
		ui.Warning("%d despesas falharam ao gravar", total.Failed)
	}
	return nil
}

func importFile(db *store.DB, file scanner.Result) (importer.Summary, error) {
	content, err := os.ReadFile(file.Path)
	if err != nil {
		return importer.Summary{}, err
	}

	result, err := statement.ParseWithInstitution(filepath.Base(file.Path), string(content), file.Bank)
	if err != nil {
		return importer.Summary{}, err
	}
	expenses := statement.FilterExpenses(result.Transactions)

	ui.Info("Formato: %s", result.Format)
	if result.Bank != "" {
		ui.Info("Banco: %s", ui.BlueText(result.Bank))
	}
	ui.Info("Transações: %d (%d despesas)", len(result.Transactions), len(expenses))

	if *verbose {
		for _, txn := range expenses {
			ui.Info("  %s  %12s  %-12s %s",
				money.FormatDate(txn.Date, money.LayoutDMY),
				money.FormatAmount(txn.Amount.Abs()),
				txn.Category,
				txn.Description)
		}
	}
	printTotals(statement.CalculateTotals(expenses))

	if *dryRun {
		return importer.Summary{Total: len(expenses)}, nil
	}
	return importer.New(db).Import(context.Background(), expenses, *user)
}

func printTotals(totals map[domain.Category]decimal.Decimal) {
	if len(totals) == 0 {
		return
	}

	categories := make([]string, 0, len(totals))
	for category := range totals {
		categories = append(categories, string(category))
	}
	sort.Strings(categories)

	ui.Info("Totais por categoria:")
	for _, category := range categories {
		ui.Info("  %-12s %s", category, money.FormatAmount(totals[domain.Category(category)]))
	}
}
