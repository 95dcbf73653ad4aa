package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/contabil/contabil/internal/domain"
)

//go:embed schema.sql
var schema string

// Monetary amounts are stored as integer cents and dates as ISO strings so
// the duplicate filter can use exact equality in SQL.
const (
	dateFormat = "2006-01-02"
	timeFormat = time.RFC3339
)

type DB struct {
	*sql.DB
}

// Open opens or creates the database at the given path and applies the schema
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("execute schema: %w", err)
	}

	return &DB{db}, nil
}

func toCents(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

func parseStoredDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateFormat, s, time.UTC)
}

// CreateExpense validates and inserts a new expense record
func (db *DB) CreateExpense(ctx context.Context, e Expense) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Date.IsZero() {
		e.Date = e.DueDate
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid expense: %w", err)
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO expenses (id, user_id, title, description, amount_cents, category,
			date, due_date, is_paid, source, external_id, barcode, connection_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.UserID, e.Title, e.Description, toCents(e.Amount), string(e.Category),
		e.Date.Format(dateFormat), e.DueDate.Format(dateFormat), boolToInt(e.IsPaid),
		string(e.Source), e.ExternalID, e.Barcode, e.ConnectionID, e.CreatedAt.Format(timeFormat))
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

// FindExpense returns the first expense matching the duplicate filter, or
// nil when none matches. Description matches the stored description or the
// stored title, since statement imports write the transaction description
// into both fields.
func (db *DB) FindExpense(ctx context.Context, f ExpenseFilter) (*Expense, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, user_id, title, description, amount_cents, category,
			date, due_date, is_paid, source, external_id, barcode, connection_id, created_at
		FROM expenses
		WHERE user_id = ? AND amount_cents = ? AND due_date = ?
			AND (description = ? OR title = ?)
		ORDER BY created_at
		LIMIT 1
	`, f.UserID, toCents(f.Amount), f.DueDate.Format(dateFormat), f.Description, f.Description)

	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find expense: %w", err)
	}
	return e, nil
}

// FindExpenseByExternalID looks up an expense by the aggregator's bill id
func (db *DB) FindExpenseByExternalID(ctx context.Context, userID, externalID string) (*Expense, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, user_id, title, description, amount_cents, category,
			date, due_date, is_paid, source, external_id, barcode, connection_id, created_at
		FROM expenses
		WHERE user_id = ? AND external_id = ? AND external_id != ''
		LIMIT 1
	`, userID, externalID)

	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find expense by external id: %w", err)
	}
	return e, nil
}

// ListExpenses returns all expenses for a user, most recent due date first
func (db *DB) ListExpenses(ctx context.Context, userID string) ([]Expense, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, title, description, amount_cents, category,
			date, due_date, is_paid, source, external_id, barcode, connection_id, created_at
		FROM expenses
		WHERE user_id = ?
		ORDER BY due_date DESC, created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(row scanner) (*Expense, error) {
	var (
		e         Expense
		cents     int64
		category  string
		date      string
		dueDate   string
		isPaid    int
		source    string
		createdAt string
	)
	err := row.Scan(&e.ID, &e.UserID, &e.Title, &e.Description, &cents, &category,
		&date, &dueDate, &isPaid, &source, &e.ExternalID, &e.Barcode, &e.ConnectionID, &createdAt)
	if err != nil {
		return nil, err
	}

	e.Amount = fromCents(cents)
	e.Category = domain.Category(category)
	e.IsPaid = isPaid != 0
	e.Source = Source(source)
	if e.Date, err = parseStoredDate(date); err != nil {
		return nil, fmt.Errorf("stored date %q: %w", date, err)
	}
	if e.DueDate, err = parseStoredDate(dueDate); err != nil {
		return nil, fmt.Errorf("stored due date %q: %w", dueDate, err)
	}
	if e.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("stored created_at %q: %w", createdAt, err)
	}
	return &e, nil
}

// CreateConnection inserts a new bank connection
func (db *DB) CreateConnection(ctx context.Context, c BankConnection) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	var lastSync any
	if c.LastSyncAt != nil {
		lastSync = c.LastSyncAt.Format(timeFormat)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO bank_connections (id, user_id, provider, institution_name,
			token_ciphertext, token_iv, token_tag, status, consent_expires_at, last_sync_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.UserID, c.Provider, c.InstitutionName,
		c.TokenCiphertext, c.TokenIV, c.TokenTag, string(c.Status),
		c.ConsentExpiresAt.Format(timeFormat), lastSync, c.CreatedAt.Format(timeFormat))
	if err != nil {
		return fmt.Errorf("insert connection: %w", err)
	}
	return nil
}

// GetConnection returns a connection by id, or nil when absent
func (db *DB) GetConnection(ctx context.Context, id string) (*BankConnection, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, user_id, provider, institution_name, token_ciphertext, token_iv, token_tag,
			status, consent_expires_at, last_sync_at, created_at
		FROM bank_connections
		WHERE id = ?
	`, id)

	c, err := scanConnection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return c, nil
}

// ListConnections returns all connections for a user
func (db *DB) ListConnections(ctx context.Context, userID string) ([]BankConnection, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, provider, institution_name, token_ciphertext, token_iv, token_tag,
			status, consent_expires_at, last_sync_at, created_at
		FROM bank_connections
		WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query connections: %w", err)
	}
	defer rows.Close()

	var connections []BankConnection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		connections = append(connections, *c)
	}
	return connections, rows.Err()
}

func scanConnection(row scanner) (*BankConnection, error) {
	var (
		c         BankConnection
		status    string
		expiresAt string
		lastSync  sql.NullString
		createdAt string
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Provider, &c.InstitutionName,
		&c.TokenCiphertext, &c.TokenIV, &c.TokenTag, &status, &expiresAt, &lastSync, &createdAt)
	if err != nil {
		return nil, err
	}

	c.Status = ConnectionStatus(status)
	if c.ConsentExpiresAt, err = time.Parse(timeFormat, expiresAt); err != nil {
		return nil, fmt.Errorf("stored consent_expires_at %q: %w", expiresAt, err)
	}
	if lastSync.Valid {
		t, err := time.Parse(timeFormat, lastSync.String)
		if err != nil {
			return nil, fmt.Errorf("stored last_sync_at %q: %w", lastSync.String, err)
		}
		c.LastSyncAt = &t
	}
	if c.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("stored created_at %q: %w", createdAt, err)
	}
	return &c, nil
}

// UpdateConnectionStatus transitions a connection's consent status
func (db *DB) UpdateConnectionStatus(ctx context.Context, id string, status ConnectionStatus) error {
	res, err := db.ExecContext(ctx, `UPDATE bank_connections SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update connection status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update connection status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("connection %s not found", id)
	}
	return nil
}

// TouchConnectionSync records the time of the latest successful sync
func (db *DB) TouchConnectionSync(ctx context.Context, id string, at time.Time) error {
	_, err := db.ExecContext(ctx, `UPDATE bank_connections SET last_sync_at = ? WHERE id = ?`,
		at.Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("update last sync: %w", err)
	}
	return nil
}

// CreateConsentLog appends a consent audit record
func (db *DB) CreateConsentLog(ctx context.Context, l ConsentLog) error {
	if l.At.IsZero() {
		l.At = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO consent_logs (id, connection_id, user_id, action, at)
		VALUES (?, ?, ?, ?, ?)
	`, l.ID, l.ConnectionID, l.UserID, l.Action, l.At.Format(timeFormat))
	if err != nil {
		return fmt.Errorf("insert consent log: %w", err)
	}
	return nil
}

// CreateSyncLog appends a sync outcome record
func (db *DB) CreateSyncLog(ctx context.Context, l SyncLog) error {
	if l.At.IsZero() {
		l.At = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_logs (id, connection_id, imported, skipped, status, detail, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.ConnectionID, l.Imported, l.Skipped, l.Status, l.Detail, l.At.Format(timeFormat))
	if err != nil {
		return fmt.Errorf("insert sync log: %w", err)
	}
	return nil
}

// ListSyncLogs returns sync history for a connection, most recent first
func (db *DB) ListSyncLogs(ctx context.Context, connectionID string) ([]SyncLog, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, connection_id, imported, skipped, status, detail, at
		FROM sync_logs
		WHERE connection_id = ?
		ORDER BY at DESC
	`, connectionID)
	if err != nil {
		return nil, fmt.Errorf("query sync logs: %w", err)
	}
	defer rows.Close()

	var logs []SyncLog
	for rows.Next() {
		var (
			l  SyncLog
			at string
		)
		if err := rows.Scan(&l.ID, &l.ConnectionID, &l.Imported, &l.Skipped, &l.Status, &l.Detail, &at); err != nil {
			return nil, fmt.Errorf("scan sync log: %w", err)
		}
		if l.At, err = time.Parse(timeFormat, at); err != nil {
			return nil, fmt.Errorf("stored sync log at %q: %w", at, err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
