// Package domain defines the canonical transaction model that every
// statement parser converges on.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Category is the fixed set of expense category labels.
// Use ValidateCategory to ensure validity before use.
type Category string

const (
	CategoryLuz         Category = "Luz"
	CategoryAgua        Category = "Água"
	CategoryInternet    Category = "Internet"
	CategoryAssinaturas Category = "Assinaturas"
	CategoryAlimentacao Category = "Alimentação"
	CategorySaude       Category = "Saúde"
	CategoryTransporte  Category = "Transporte"
	CategoryOutros      Category = "Outros"
)

var validCategories = map[Category]struct{}{
	CategoryLuz: {}, CategoryAgua: {}, CategoryInternet: {},
	CategoryAssinaturas: {}, CategoryAlimentacao: {}, CategorySaude: {},
	CategoryTransporte: {}, CategoryOutros: {},
}

// ValidateCategory checks if category is valid
func ValidateCategory(c Category) bool {
	_, ok := validCategories[c]
	return ok
}

// TransactionType tags the direction of a transaction.
type TransactionType string

const (
	// TypeDebit is money leaving the account (expense candidate).
	TypeDebit TransactionType = "debit"
	// TypeCredit is money entering the account.
	TypeCredit TransactionType = "credit"
)

// Transaction is the normalized in-memory representation produced by every
// parser. It is ephemeral: constructed per parse call, consumed by
// categorization and import, never persisted as-is.
//
// Sign convention:
//
//	Negative = outflow (debit)
//	Non-negative = inflow (credit)
//
// Parsers must normalize to this convention regardless of source file
// representation. Type is always derived from the sign of Amount; construct
// transactions via NewTransaction so the invariant holds.
type Transaction struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Category    Category
	Type        TransactionType
}

// NewTransaction creates a validated transaction with Type derived from the
// amount sign.
func NewTransaction(date time.Time, description string, amount decimal.Decimal) (*Transaction, error) {
	if date.IsZero() {
		return nil, fmt.Errorf("transaction date cannot be zero")
	}
	if description == "" {
		return nil, fmt.Errorf("description cannot be empty")
	}

	return &Transaction{
		Date:        date,
		Description: description,
		Amount:      amount,
		Type:        TypeFromAmount(amount),
	}, nil
}

// TypeFromAmount derives the transaction type from the amount sign:
// debit iff amount < 0.
func TypeFromAmount(amount decimal.Decimal) TransactionType {
	if amount.IsNegative() {
		return TypeDebit
	}
	return TypeCredit
}

// IsDebit reports whether the transaction is an outflow.
func (t *Transaction) IsDebit() bool {
	return t.Type == TypeDebit
}
