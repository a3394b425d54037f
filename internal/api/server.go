// Package api provides the HTTP server for outpost.
// It exposes action resolution, actor read models, and per-wallet story
// sessions as JSON over chi.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/outpost-game/outpost/internal/app/resolver"
	"github.com/outpost-game/outpost/internal/domain"
	"github.com/outpost-game/outpost/internal/infra/observability"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Store is the read side the API needs beyond the resolver.
type Store interface {
	ActorByWallet(ctx context.Context, wallet string) (*domain.Actor, error)
	Inventory(ctx context.Context, actorID string) ([]domain.InventoryLine, error)
	Transactions(ctx context.Context, actorID string, limit int) ([]domain.TransactionRecord, error)
}

// Server is the outpost HTTP API server.
type Server struct {
	resolver       *resolver.Resolver
	store          Store
	stories        *StorySessions // nil disables the story routes
	metricsEnabled bool
	log            *slog.Logger
}

// NewServer creates a new API server.
func NewServer(res *resolver.Resolver, store Store) *Server {
	return &Server{
		resolver: res,
		store:    store,
		log:      observability.Component("api"),
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetStories mounts the story routes and routes resolve events into them.
func (s *Server) SetStories(st *StorySessions) { s.stories = st }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/actions/resolve", s.handleResolve)

		r.Route("/actors/{wallet}", func(r chi.Router) {
			r.Get("/", s.handleActor)
			r.Get("/inventory", s.handleInventory)
			r.Get("/transactions", s.handleTransactions)
		})

		if s.stories != nil {
			r.Route("/story/{wallet}", func(r chi.Router) {
				r.Post("/trigger", s.handleStoryTrigger)
				r.Get("/pending", s.handleStoryPending)
				r.Post("/pending/choose", s.handleStoryChoose)
				r.Post("/pending/finish", s.handleStoryFinish)
				r.Get("/milestones", s.handleStoryMilestones)
			})
		}
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":   "ok",
		"resolver": s.resolver.Stats(),
	}
	if s.stories != nil {
		resp["storySessions"] = s.stories.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─── Response Helpers ───────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, kind domain.ErrorKind, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"kind":    kind,
			"message": msg,
		},
	})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidArgument:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInsufficientResource, domain.KindActionUnavailable:
		return http.StatusUnprocessableEntity
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError classifies err and writes it. Storage failures are
// logged and reported without their cause.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	ae := domain.AsActionError(err)
	kind := ae.Kind
	status := statusFor(kind)

	if kind == domain.KindStorage {
		s.log.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		writeError(w, status, kind, "internal error")
		return
	}

	body := map[string]interface{}{
		"kind":    kind,
		"message": ae.Message,
	}
	var ire *domain.InsufficientResourceError
	if errors.As(err, &ire) {
		body["energy"] = ire.Energy
		body["cost"] = ire.Cost
		body["capacity"] = ire.Capacity
	}
	writeJSON(w, status, map[string]interface{}{"error": body})
}

// decodeBody reads a JSON request body into v. An empty body leaves v as is.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, domain.KindInvalidArgument, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// walletParam reads and normalises the {wallet} URL parameter.
func walletParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	wallet := domain.NormalizeWallet(chi.URLParam(r, "wallet"))
	if wallet == "" {
		writeError(w, http.StatusBadRequest, domain.KindInvalidArgument, "wallet address is required")
		return "", false
	}
	return wallet, true
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
