package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/contabil/contabil/internal/middleware"
	"github.com/contabil/contabil/internal/openfinance"
)

// OpenFinanceHandler handles aggregator connection routes
type OpenFinanceHandler struct {
	service *openfinance.Service
}

// NewOpenFinanceHandler creates a new open finance handler
func NewOpenFinanceHandler(service *openfinance.Service) *OpenFinanceHandler {
	return &OpenFinanceHandler{service: service}
}

// Connect handles POST /api/open-finance/connect. It returns the widget
// token the frontend needs to start a new bank authorization.
func (h *OpenFinanceHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token, err := h.service.ConnectToken(r.Context())
	if err != nil {
		log.Printf("ERROR: Creating connect token for user %s: %v", userID, err)
		writeError(w, http.StatusBadGateway, "Failed to create connect token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"accessToken": token})
}

type callbackRequest struct {
	InstitutionName string `json:"institutionName"`
	AccessToken     string `json:"accessToken"`
}

// Callback handles POST /api/open-finance/callback. The widget calls it
// after the user authorizes a bank; the access token is encrypted and the
// connection saved with a fresh consent.
func (h *OpenFinanceHandler) Callback(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.AccessToken == "" {
		writeError(w, http.StatusBadRequest, "Access token cannot be empty")
		return
	}

	connection, err := h.service.SaveConnection(r.Context(), userID, req.InstitutionName, req.AccessToken)
	if err != nil {
		log.Printf("ERROR: Saving connection for user %s: %v", userID, err)
		writeError(w, http.StatusBadRequest, "Failed to save connection")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":              connection.ID,
		"institutionName": connection.InstitutionName,
		"status":          string(connection.Status),
	})
}

// Connections handles GET /api/open-finance/connections
func (h *OpenFinanceHandler) Connections(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	connections, err := h.service.ListConnections(r.Context(), userID)
	if err != nil {
		log.Printf("ERROR: Listing connections for user %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to list connections")
		return
	}

	type connectionResponse struct {
		ID               string `json:"id"`
		Provider         string `json:"provider"`
		InstitutionName  string `json:"institutionName"`
		Status           string `json:"status"`
		ConsentExpiresAt string `json:"consentExpiresAt"`
		LastSyncAt       string `json:"lastSyncAt,omitempty"`
	}

	response := make([]connectionResponse, 0, len(connections))
	for _, c := range connections {
		item := connectionResponse{
			ID:               c.ID,
			Provider:         c.Provider,
			InstitutionName:  c.InstitutionName,
			Status:           string(c.Status),
			ConsentExpiresAt: c.ConsentExpiresAt.Format("2006-01-02"),
		}
		if c.LastSyncAt != nil {
			item.LastSyncAt = c.LastSyncAt.Format("2006-01-02")
		}
		response = append(response, item)
	}

	writeJSON(w, http.StatusOK, response)
}

type syncRequest struct {
	ConnectionID string `json:"connectionId"`
}

// Sync handles POST /api/open-finance/sync
func (h *OpenFinanceHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ConnectionID == "" {
		writeError(w, http.StatusBadRequest, "Connection id cannot be empty")
		return
	}

	summary, err := h.service.SyncBills(r.Context(), req.ConnectionID, userID)
	if err != nil {
		log.Printf("ERROR: Syncing connection %s for user %s: %v", req.ConnectionID, userID, err)
		writeError(w, http.StatusBadRequest, "Failed to sync connection")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// Revoke handles DELETE /api/open-finance/connections/{id}
func (h *OpenFinanceHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	connectionID := r.PathValue("id")
	if err := h.service.RevokeConnection(r.Context(), connectionID, userID); err != nil {
		log.Printf("ERROR: Revoking connection %s for user %s: %v", connectionID, userID, err)
		writeError(w, http.StatusNotFound, "Connection not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}
