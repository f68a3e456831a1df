// Package server exposes the wizard HTTP surface: connection testing,
// scope-tree discovery, preflight checks, and run start.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/metahub/mex-core/internal/activities"
	"github.com/metahub/mex-core/internal/filter"
	"github.com/metahub/mex-core/internal/preflight"
	"github.com/metahub/mex-core/internal/source"
)

// Server holds the HTTP handler dependencies.
type Server struct {
	Sources *source.Registry
	Starter Starter
	Logger  *slog.Logger
}

// New creates a server; nil registries fall back to the defaults.
func New(sources *source.Registry, starter Starter, logger *slog.Logger) *Server {
	if sources == nil {
		sources = source.DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{Sources: sources, Starter: starter, Logger: logger}
}

// Router builds the chi router for the wizard surface.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Post("/auth", s.handleAuth)
	r.Post("/metadata", s.handleMetadata)
	r.Post("/check", s.handleCheck)
	r.Post("/start", s.handleStart)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.Logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"durationMs", time.Since(started).Milliseconds())
	})
}

// connectionRequest is the shared request body: a template ID, its
// config, and (for /check and /start) the wire-format filter fields
// carried in the same payload.
type connectionRequest struct {
	TemplateID string         `json:"templateId"`
	Config     map[string]any `json:"config"`
	Payload    map[string]any `json:"-"`
}

func (s *Server) decodeConnection(w http.ResponseWriter, r *http.Request) (*connectionRequest, bool) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return nil, false
	}

	req := &connectionRequest{Payload: payload}
	if v, ok := payload["templateId"].(string); ok {
		req.TemplateID = v
	}
	if v, ok := payload["config"].(map[string]any); ok {
		req.Config = v
	}
	if req.TemplateID == "" {
		writeError(w, http.StatusBadRequest, "templateId is required")
		return nil, false
	}
	return req, true
}

func (s *Server) gateway(w http.ResponseWriter, req *connectionRequest) (source.Gateway, bool) {
	gw, err := s.Sources.Create(req.TemplateID, req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return gw, true
}

// handleAuth tests the connection: POST /auth -> {success, message}.
func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeConnection(w, r)
	if !ok {
		return
	}
	gw, ok := s.gateway(w, req)
	if !ok {
		return
	}
	defer gw.Close()

	if err := gw.TestConnection(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Connection successful",
	})
}

// handleMetadata returns the selectable scope tree used to build a
// filter interactively: POST /metadata -> [{name, kind, children}].
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeConnection(w, r)
	if !ok {
		return
	}
	gw, ok := s.gateway(w, req)
	if !ok {
		return
	}
	defer gw.Close()

	ctx := r.Context()
	catalogs, err := gw.ListCatalogs(ctx)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	tree := make([]*source.ScopeNode, 0, len(catalogs))
	for _, cat := range catalogs {
		node := &source.ScopeNode{Name: cat.Name, Kind: cat.Kind}
		schemas, err := gw.ListSchemas(ctx, cat.Name, nil)
		if err != nil {
			// A catalog the principal cannot open still shows up as a
			// leaf so the user sees it exists.
			tree = append(tree, node)
			continue
		}
		for _, sch := range schemas {
			node.Children = append(node.Children, &source.ScopeNode{Name: sch.Name, Kind: sch.Kind})
		}
		tree = append(tree, node)
	}
	writeJSON(w, http.StatusOK, tree)
}

// handleCheck runs preflight and renders it per-check: POST /check.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeConnection(w, r)
	if !ok {
		return
	}

	spec, err := filter.SpecFromPayload(req.Payload, filter.Options{})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	gw, ok := s.gateway(w, req)
	if !ok {
		return
	}
	defer gw.Close()

	report, _ := preflight.Run(r.Context(), gw, filter.Compile(spec))
	writeJSON(w, http.StatusOK, report.RenderChecks())
}

// handleStart begins a run asynchronously: POST /start -> {workflow_id}.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if s.Starter == nil {
		writeError(w, http.StatusServiceUnavailable, "run starter not configured")
		return
	}

	req, ok := s.decodeConnection(w, r)
	if !ok {
		return
	}

	spec, err := filter.SpecFromPayload(req.Payload, filter.Options{})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runReq := &activities.RunRequest{
		Connection: activities.ConnectionSpec{
			TemplateID: req.TemplateID,
			Config:     req.Config,
		},
		Filter: spec,
	}
	if v, ok := req.Payload["runId"].(string); ok {
		runReq.RunID = v
	}
	if v, ok := req.Payload["stagingProvider"].(string); ok {
		runReq.StagingProvider = v
	}
	if v, ok := req.Payload["poolSize"].(float64); ok {
		runReq.PoolSize = int(v)
	}

	workflowID, err := s.Starter.StartRun(r.Context(), runReq)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": workflowID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
