// Package handlers implements the HTTP API: statement import, OCR text
// extraction, Open Finance connections, and expense listing.
package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/contabil/contabil/internal/middleware"
	"github.com/contabil/contabil/internal/store"
)

// ExpenseStore is the read side the API handler needs. *store.DB satisfies it.
type ExpenseStore interface {
	ListExpenses(ctx context.Context, userID string) ([]store.Expense, error)
}

// APIHandler handles API requests
type APIHandler struct {
	store ExpenseStore
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(st ExpenseStore) *APIHandler {
	return &APIHandler{store: st}
}

type expenseResponse struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Amount       string `json:"amount"`
	Category     string `json:"category"`
	Date         string `json:"date"`
	DueDate      string `json:"dueDate"`
	IsPaid       bool   `json:"isPaid"`
	Source       string `json:"source"`
	ExternalID   string `json:"externalId,omitempty"`
	Barcode      string `json:"barcode,omitempty"`
	ConnectionID string `json:"connectionId,omitempty"`
}

// GetExpenses handles GET /api/expenses
func (h *APIHandler) GetExpenses(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	expenses, err := h.store.ListExpenses(r.Context(), userID)
	if err != nil {
		log.Printf("ERROR: Failed to fetch expenses for user %s: %v", userID, err)
		http.Error(w, "Failed to fetch expenses", http.StatusInternalServerError)
		return
	}

	response := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		response = append(response, expenseResponse{
			ID:           e.ID,
			Title:        e.Title,
			Description:  e.Description,
			Amount:       e.Amount.StringFixed(2),
			Category:     string(e.Category),
			Date:         e.Date.Format("2006-01-02"),
			DueDate:      e.DueDate.Format("2006-01-02"),
			IsPaid:       e.IsPaid,
			Source:       string(e.Source),
			ExternalID:   e.ExternalID,
			Barcode:      e.Barcode,
			ConnectionID: e.ConnectionID,
		})
	}

	writeJSON(w, http.StatusOK, response)
}

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("ERROR: Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
