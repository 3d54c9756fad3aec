// ABOUTME: HTTP API server exposing envelope dispatch, context builds, and connections
// ABOUTME: JSON over HTTP with bearer JWT auth on every endpoint except health

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/2389/context-gateway/internal/auth"
	"github.com/2389/context-gateway/internal/bundle"
	"github.com/2389/context-gateway/internal/registry"
	"github.com/2389/context-gateway/internal/router"
	"github.com/2389/context-gateway/internal/store"
)

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// Config holds configuration for the API server.
type Config struct {
	Store      store.ConnectionStore
	Registry   *registry.Registry
	Router     *router.Router
	Aggregator *bundle.Aggregator
	Verifier   auth.TokenVerifier
	Logger     *slog.Logger

	// DefaultMaxTokens applies to context builds that omit max_tokens.
	DefaultMaxTokens int
}

// Server exposes the gateway over HTTP.
type Server struct {
	store            store.ConnectionStore
	registry         *registry.Registry
	router           *router.Router
	aggregator       *bundle.Aggregator
	verifier         auth.TokenVerifier
	logger           *slog.Logger
	defaultMaxTokens int
}

// NewServer creates an API server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Router == nil {
		return nil, errors.New("router is required")
	}
	if cfg.Aggregator == nil {
		return nil, errors.New("aggregator is required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("token verifier is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		store:            cfg.Store,
		registry:         cfg.Registry,
		router:           cfg.Router,
		aggregator:       cfg.Aggregator,
		verifier:         cfg.Verifier,
		logger:           logger.With("component", "httpapi"),
		defaultMaxTokens: cfg.DefaultMaxTokens,
	}, nil
}

// RegisterRoutes registers all API endpoints on the given ServeMux.
// Everything under /v1/ requires a bearer token; /health does not.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	authed := auth.Middleware(s.verifier)

	mux.Handle("POST /v1/envelope", authed(http.HandlerFunc(s.handleEnvelope)))
	mux.Handle("POST /v1/context", authed(http.HandlerFunc(s.handleContext)))
	mux.Handle("POST /v1/connections", authed(http.HandlerFunc(s.handleRegisterConnection)))
	mux.Handle("GET /v1/connections", authed(http.HandlerFunc(s.handleListConnections)))
	mux.Handle("DELETE /v1/connections/{id}", authed(http.HandlerFunc(s.handleDeleteConnection)))
	mux.HandleFunc("GET /health", s.handleHealth)
}

// handleEnvelope dispatches one protocol envelope. The HTTP status is
// 200 for anything the router could process; protocol failures travel
// inside the returned error envelope, not as HTTP errors.
func (s *Server) handleEnvelope(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading request body")
		return
	}

	ownerID := auth.OwnerFromContext(r.Context())
	resp := s.router.DispatchRaw(r.Context(), ownerID, body)
	writeJSON(w, http.StatusOK, resp)
}

// contextRequest is the body for POST /v1/context.
type contextRequest struct {
	Services        []string `json:"services"`
	MaxTokens       int      `json:"max_tokens"`
	IncludeMetadata bool     `json:"include_metadata"`
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Services) == 0 {
		writeError(w, http.StatusBadRequest, "services is required")
		return
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = s.defaultMaxTokens
	}

	ownerID := auth.OwnerFromContext(r.Context())
	result, err := s.aggregator.BuildContext(r.Context(), ownerID, req.Services, bundle.Options{
		MaxTokens:       maxTokens,
		IncludeMetadata: req.IncludeMetadata,
	})
	if err != nil {
		s.logger.Error("context build aborted", "owner_id", ownerID, "error", err)
		writeError(w, http.StatusInternalServerError, "context build aborted")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// registerConnectionRequest is the body for POST /v1/connections.
type registerConnectionRequest struct {
	ServiceType string            `json:"service_type"`
	Credentials map[string]string `json:"credentials"`
}

func (s *Server) handleRegisterConnection(w http.ResponseWriter, r *http.Request) {
	var req registerConnectionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ServiceType == "" {
		writeError(w, http.StatusBadRequest, "service_type is required")
		return
	}
	if !s.registry.Supported(req.ServiceType) {
		writeError(w, http.StatusBadRequest, "unsupported service type: "+req.ServiceType)
		return
	}

	ownerID := auth.OwnerFromContext(r.Context())
	connID, err := s.store.Register(r.Context(), ownerID, req.ServiceType, req.Credentials)
	if err != nil {
		s.logger.Error("connection registration failed", "owner_id", ownerID, "error", err)
		writeError(w, http.StatusInternalServerError, "registering connection")
		return
	}

	s.logger.Info("connection registered", "connection_id", connID, "service_type", req.ServiceType, "owner_id", ownerID)
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":           connID,
		"service_type": req.ServiceType,
	})
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerFromContext(r.Context())
	conns, err := s.store.ListByOwner(r.Context(), ownerID)
	if err != nil {
		s.logger.Error("listing connections failed", "owner_id", ownerID, "error", err)
		writeError(w, http.StatusInternalServerError, "listing connections")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"connections": conns})
}

func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	connID := r.PathValue("id")
	ownerID := auth.OwnerFromContext(r.Context())

	if err := s.store.Delete(r.Context(), connID, ownerID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "connection not found")
		case errors.Is(err, store.ErrForbidden):
			writeError(w, http.StatusForbidden, "connection belongs to another owner")
		default:
			s.logger.Error("connection deletion failed", "connection_id", connID, "error", err)
			writeError(w, http.StatusInternalServerError, "deleting connection")
		}
		return
	}

	// Drop any cached adapter so its session dies with the connection
	s.registry.Evict(connID)
	s.logger.Info("connection deleted", "connection_id", connID, "owner_id", ownerID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody decodes a JSON request body with the standard size cap.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxRequestBodySize))
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
