// Package server wires the HTTP API together.
package server

import (
	"fmt"
	"net/http"

	"github.com/contabil/contabil/internal/handlers"
	"github.com/contabil/contabil/internal/importer"
	"github.com/contabil/contabil/internal/middleware"
	"github.com/contabil/contabil/internal/openfinance"
	"github.com/contabil/contabil/internal/secrets"
	"github.com/contabil/contabil/internal/store"
)

// Config carries the server's runtime configuration
type Config struct {
	DBPath        string
	JWTSecret     []byte
	AllowedOrigin string
	// Aggregator endpoint; leave empty to disable Open Finance routes.
	AggregatorURL    string
	AggregatorAPIKey string
}

// Server represents the expense API server
type Server struct {
	db  *store.DB
	mux *http.ServeMux
	cfg Config
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if len(cfg.JWTSecret) == 0 {
		return nil, fmt.Errorf("JWT secret cannot be empty")
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	s := &Server{
		db:  db,
		mux: http.NewServeMux(),
		cfg: cfg,
	}
	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() error {
	// Health check (no auth required)
	s.mux.HandleFunc("/health", handlers.HealthCheck)

	authMiddleware := middleware.NewAuthMiddleware(s.cfg.JWTSecret)

	apiHandler := handlers.NewAPIHandler(s.db)
	importHandler := handlers.NewImportHandler(importer.New(s.db))

	s.mux.Handle("GET /api/expenses", authMiddleware.RequireAuth(http.HandlerFunc(apiHandler.GetExpenses)))
	s.mux.Handle("POST /api/import-statement", authMiddleware.RequireAuth(http.HandlerFunc(importHandler.ImportStatement)))
	s.mux.Handle("POST /api/upload", authMiddleware.RequireAuth(http.HandlerFunc(importHandler.ExtractUpload)))

	if s.cfg.AggregatorURL != "" {
		cipher, err := secrets.NewCipherFromEnv()
		if err != nil {
			return fmt.Errorf("open finance routes need an encryption key: %w", err)
		}
		client := openfinance.NewHTTPClient(s.cfg.AggregatorURL, s.cfg.AggregatorAPIKey)
		service := openfinance.NewService(client, s.db, cipher)
		ofHandler := handlers.NewOpenFinanceHandler(service)

		s.mux.Handle("POST /api/open-finance/connect", authMiddleware.RequireAuth(http.HandlerFunc(ofHandler.Connect)))
		s.mux.Handle("POST /api/open-finance/callback", authMiddleware.RequireAuth(http.HandlerFunc(ofHandler.Callback)))
		s.mux.Handle("GET /api/open-finance/connections", authMiddleware.RequireAuth(http.HandlerFunc(ofHandler.Connections)))
		s.mux.Handle("DELETE /api/open-finance/connections/{id}", authMiddleware.RequireAuth(http.HandlerFunc(ofHandler.Revoke)))
		s.mux.Handle("POST /api/open-finance/sync", authMiddleware.RequireAuth(http.HandlerFunc(ofHandler.Sync)))
	}

	return nil
}

// Handler returns the HTTP handler with CORS applied
func (s *Server) Handler() http.Handler {
	return middleware.CORS(s.cfg.AllowedOrigin)(s.mux)
}

// Close closes the server resources
func (s *Server) Close() error {
	return s.db.Close()
}
