// Package server exposes the ledger over a JSON HTTP API.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/spice-ledger/internal/engine"
	"github.com/Veraticus/spice-ledger/internal/importer"
	"github.com/Veraticus/spice-ledger/internal/review"
	"github.com/Veraticus/spice-ledger/internal/rules"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/gorilla/mux"
)

// OwnerHeader carries the caller's owner id. It is trusted as given.
const OwnerHeader = "X-Owner-ID"

type ownerKey struct{}

// Deps are the collaborators the API is served from.
type Deps struct {
	Storage    service.Storage
	Engine     *engine.Engine
	Reviews    *review.Service
	Importer   *importer.Importer
	Classifier rules.Classifier
}

// Server represents the API server.
type Server struct {
	router *mux.Router
	deps   Deps
}

// New creates an API server and registers its routes.
func New(deps Deps) *Server {
	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
	}
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler for the API server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Use(logRequests)
	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	// The classification endpoint answers for any caller.
	s.router.HandleFunc("/api/classify", s.classify).Methods(http.MethodPost)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(requireOwner)

	api.HandleFunc("/transactions", s.listTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.createTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/import", s.importTransactions).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{id}", s.getTransaction).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id}", s.deleteTransaction).Methods(http.MethodDelete)
	api.HandleFunc("/transactions/{id}/categories", s.setTransactionCategories).Methods(http.MethodPut)
	api.HandleFunc("/transactions/{id}/approve", s.approveTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{id}/reject", s.rejectTransaction).Methods(http.MethodPost)

	api.HandleFunc("/categories", s.listCategories).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.createCategory).Methods(http.MethodPost)
	api.HandleFunc("/categories/{id}", s.deleteCategory).Methods(http.MethodDelete)

	api.HandleFunc("/rules", s.listRules).Methods(http.MethodGet)
	api.HandleFunc("/rules", s.createRule).Methods(http.MethodPost)
	api.HandleFunc("/rules/apply", s.applyRules).Methods(http.MethodPost)
	api.HandleFunc("/rules/{id}", s.deleteRule).Methods(http.MethodDelete)

	api.HandleFunc("/flags/run", s.runFlagger).Methods(http.MethodPost)

	api.HandleFunc("/reviews", s.listReviews).Methods(http.MethodGet)
	api.HandleFunc("/reviews", s.createReview).Methods(http.MethodPost)
	api.HandleFunc("/reviews/queue", s.reviewQueue).Methods(http.MethodGet)
	api.HandleFunc("/reviews/{id}", s.updateReview).Methods(http.MethodPut)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireOwner rejects requests without an owner header and stores the
// owner id in the request context.
func requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get(OwnerHeader)
		if owner == "" {
			writeMessage(w, http.StatusUnauthorized, "missing "+OwnerHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
	})
}

func ownerFrom(r *http.Request) string {
	owner, _ := r.Context().Value(ownerKey{}).(string)
	return owner
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
