package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/contabil/contabil/internal/banks"
	"github.com/contabil/contabil/internal/domain"
	"github.com/contabil/contabil/internal/importer"
	"github.com/contabil/contabil/internal/middleware"
	"github.com/contabil/contabil/internal/ocrtext"
	"github.com/contabil/contabil/internal/rules"
	"github.com/contabil/contabil/internal/statement"
)

// maxStatementSize caps uploaded statement files at 10MB
const maxStatementSize = 10 << 20

// Summarizer is the import pipeline contract. *importer.Importer satisfies it.
type Summarizer interface {
	Import(ctx context.Context, txns []domain.Transaction, userID string) (importer.Summary, error)
}

// ImportHandler handles statement uploads and OCR text extraction
type ImportHandler struct {
	importer Summarizer
}

// NewImportHandler creates a new import handler
func NewImportHandler(imp Summarizer) *ImportHandler {
	return &ImportHandler{importer: imp}
}

type importResponse struct {
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
	Total    int    `json:"total"`
	Format   string `json:"format"`
	Bank     string `json:"bank,omitempty"`
	Message  string `json:"message"`
}

// ImportStatement handles POST /api/import-statement. The uploaded file goes
// through format detection, parsing, expense filtering, and duplicate-aware
// persistence; the response is the aggregate summary.
func (h *ImportHandler) ImportStatement(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxStatementSize); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxStatementSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	result, err := statement.Parse(header.Filename, string(content))
	if err != nil {
		var unsupported *statement.UnsupportedFormatError
		var unknownBank *banks.UnknownInstitutionError
		switch {
		case errors.As(err, &unsupported):
			writeError(w, http.StatusBadRequest, unsupported.Error())
		case errors.As(err, &unknownBank):
			writeError(w, http.StatusBadRequest, unknownBank.Error())
		default:
			log.Printf("ERROR: Parsing statement %s for user %s: %v", header.Filename, userID, err)
			writeError(w, http.StatusBadRequest, "Failed to parse statement")
		}
		return
	}

	expenses := statement.FilterExpenses(result.Transactions)
	summary, err := h.importer.Import(r.Context(), expenses, userID)
	if err != nil {
		log.Printf("ERROR: Importing statement %s for user %s: %v", header.Filename, userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to import statement")
		return
	}

	writeJSON(w, http.StatusOK, importResponse{
		Imported: summary.Imported,
		Skipped:  summary.Skipped,
		Failed:   summary.Failed,
		Total:    summary.Total,
		Format:   string(result.Format),
		Bank:     result.Bank,
		Message:  summary.Message(),
	})
}

type uploadRequest struct {
	Text string `json:"text"`
}

type uploadResponse struct {
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ExtractUpload handles POST /api/upload. It receives the raw text produced
// by the client-side OCR pass over a scanned bill and returns a best-effort
// expense draft. Extraction never fails; missing fields come back with
// defaults the user can correct.
func (h *ImportHandler) ExtractUpload(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetUserID(r.Context()); !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req uploadRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxStatementSize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "Text cannot be empty")
		return
	}

	extraction := ocrtext.Extract(req.Text)
	writeJSON(w, http.StatusOK, uploadResponse{
		Amount:      extraction.Amount.StringFixed(2),
		Date:        extraction.Date.Format("2006-01-02"),
		Description: extraction.Description,
		Category:    string(rules.Categorize(extraction.Description)),
	})
}
