// Package api exposes the ledger over HTTP. The caller's identity arrives
// in the X-Owner-ID header; every customer route checks that the customer
// belongs to that owner before touching the ledger.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/khata-ledger/internal/ledger"
)

const (
	ownerHeader          = "X-Owner-ID"
	idempotencyKeyHeader = "Idempotency-Key"

	requestTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

// Server is the khata HTTP API.
type Server struct {
	ledger   *ledger.Ledger
	logger   *zap.Logger
	validate *validator.Validate
}

// NewServer creates a new API server.
func NewServer(l *ledger.Ledger, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		ledger:   l,
		logger:   logger,
		validate: newValidator(),
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(requireOwner)

		r.Post("/customers", s.handleCreateCustomer)
		r.Get("/customers", s.handleListCustomers)
		r.Route("/customers/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetCustomer)
			r.Patch("/", s.handleUpdateCustomer)
			r.Delete("/", s.handleDeleteCustomer)
			r.Post("/transactions", s.handleApplyTransaction)
			r.Get("/transactions", s.handleStatement)
		})
	})

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorBody is the shape of every error response.
type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, errType, msg string) {
	writeJSON(w, status, map[string]any{
		"error": errorBody{Message: msg, Type: errType},
	})
}
