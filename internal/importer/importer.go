// Package importer persists parsed transactions as expenses, skipping
// records already present in the store. Re-importing a statement that
// overlaps previous imports must never create duplicate expenses.
package importer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/contabil/contabil/internal/domain"
	"github.com/contabil/contabil/internal/store"
)

// Store is the persistence contract the importer needs. *store.DB satisfies it.
type Store interface {
	FindExpense(ctx context.Context, f store.ExpenseFilter) (*store.Expense, error)
	CreateExpense(ctx context.Context, e store.Expense) error
}

// Summary aggregates the outcome of one import run
type Summary struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
	Total    int `json:"total"`
}

// Message renders the user-facing summary line
func (s Summary) Message() string {
	return fmt.Sprintf("%d despesas importadas, %d duplicadas", s.Imported, s.Skipped)
}

type Importer struct {
	store Store
}

func New(store Store) *Importer {
	return &Importer{store: store}
}

// Import persists transactions for a user. Transactions are processed
// strictly in order: the duplicate check and insert for one transaction
// complete before the next begins, so a statement that repeats a line only
// imports it once.
//
// A transaction is a duplicate when the store already holds an expense for
// the same user with the same absolute amount, the same due date, and a
// description equal to either the stored description or the stored title.
// Duplicates are skipped, not errors. A lookup or insert failure on one
// transaction is counted as failed and the run continues.
func (im *Importer) Import(ctx context.Context, txns []domain.Transaction, userID string) (Summary, error) {
	summary := Summary{Total: len(txns)}
	if userID == "" {
		return summary, fmt.Errorf("user id cannot be empty")
	}

	for _, txn := range txns {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("import interrupted: %w", err)
		}

		amount := txn.Amount.Abs()
		dueDate := truncateToDay(txn.Date)

		existing, err := im.store.FindExpense(ctx, store.ExpenseFilter{
			UserID:      userID,
			Amount:      amount,
			DueDate:     dueDate,
			Description: txn.Description,
		})
		if err != nil {
			log.Printf("ERROR: duplicate lookup for %q: %v", txn.Description, err)
			summary.Failed++
			continue
		}
		if existing != nil {
			summary.Skipped++
			continue
		}

		expense := store.Expense{
			ID:          uuid.NewString(),
			UserID:      userID,
			Title:       txn.Description,
			Description: txn.Description,
			Amount:      amount,
			Category:    txn.Category,
			Date:        dueDate,
			DueDate:     dueDate,
			IsPaid:      false,
			Source:      store.SourceBankStatement,
		}
		if err := im.store.CreateExpense(ctx, expense); err != nil {
			log.Printf("ERROR: persisting %q: %v", txn.Description, err)
			summary.Failed++
			continue
		}
		summary.Imported++
	}

	return summary, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
