// Package store persists expenses, bank connections, and sync history in
// SQLite. It is the durable side of the import pipeline: the duplicate
// filter and the Open Finance sync both run against it.
package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/contabil/contabil/internal/domain"
)

// Source identifies where an expense record came from
type Source string

const (
	SourceManual        Source = "MANUAL"
	SourceBankStatement Source = "BANK_STATEMENT"
	SourceOpenFinance   Source = "OPEN_FINANCE"
)

// ValidSource reports whether s is a known expense source
func ValidSource(s Source) bool {
	switch s {
	case SourceManual, SourceBankStatement, SourceOpenFinance:
		return true
	}
	return false
}

// Expense is a persisted expense record. Amount is always stored as an
// absolute value; the sign convention lives in domain.Transaction only.
type Expense struct {
	ID           string
	UserID       string
	Title        string
	Description  string
	Amount       decimal.Decimal
	Category     domain.Category
	Date         time.Time
	DueDate      time.Time
	IsPaid       bool
	Source       Source
	ExternalID   string
	Barcode      string
	ConnectionID string
	CreatedAt    time.Time
}

// Validate checks the invariants a record must satisfy before insertion
func (e *Expense) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("expense id cannot be empty")
	}
	if strings.TrimSpace(e.UserID) == "" {
		return fmt.Errorf("expense user id cannot be empty")
	}
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("expense title cannot be empty")
	}
	if e.Amount.IsNegative() {
		return fmt.Errorf("expense amount must be absolute, got %s", e.Amount)
	}
	if e.DueDate.IsZero() {
		return fmt.Errorf("expense due date cannot be zero")
	}
	if !ValidSource(e.Source) {
		return fmt.Errorf("invalid expense source %q", e.Source)
	}
	if e.Category != "" && !domain.ValidateCategory(e.Category) {
		return fmt.Errorf("invalid expense category %q", e.Category)
	}
	return nil
}

// ExpenseFilter narrows duplicate lookups. All set fields must match;
// Description matches either the stored description or the stored title.
type ExpenseFilter struct {
	UserID      string
	Amount      decimal.Decimal
	DueDate     time.Time
	Description string
}

// ConnectionStatus tracks the lifecycle of an Open Finance consent
type ConnectionStatus string

const (
	ConnectionActive  ConnectionStatus = "ACTIVE"
	ConnectionExpired ConnectionStatus = "EXPIRED"
	ConnectionRevoked ConnectionStatus = "REVOKED"
)

// BankConnection links a user to an aggregator item. The access token is
// stored encrypted; ciphertext, IV, and auth tag are hex strings produced
// by the secrets package.
type BankConnection struct {
	ID               string
	UserID           string
	Provider         string
	InstitutionName  string
	TokenCiphertext  string
	TokenIV          string
	TokenTag         string
	Status           ConnectionStatus
	ConsentExpiresAt time.Time
	LastSyncAt       *time.Time
	CreatedAt        time.Time
}

// ConsentLog is an audit record of consent grants and revocations
type ConsentLog struct {
	ID           string
	ConnectionID string
	UserID       string
	Action       string // GRANTED, RENEWED, REVOKED
	At           time.Time
}

// SyncLog records the outcome of one bill sync run for a connection
type SyncLog struct {
	ID           string
	ConnectionID string
	Imported     int
	Skipped      int
	Status       string // SUCCESS, FAILED
	Detail       string
	At           time.Time
}
