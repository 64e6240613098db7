// Package api exposes search, orchestration and the tool catalog over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/agent"
	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/cost"
	"github.com/sells-group/lead-engine/internal/lead"
	"github.com/sells-group/lead-engine/internal/scorer"
	"github.com/sells-group/lead-engine/internal/search"
	"github.com/sells-group/lead-engine/internal/tools"
)

const maxBodyBytes = 1 << 20

// Deps are the components the server routes to. Orchestrator may be nil,
// in which case orchestration requests get 503.
type Deps struct {
	Engine       *search.Engine
	Scorer       *scorer.Scorer
	Orchestrator *agent.Orchestrator
	Registry     *tools.Registry
	Pricing      *cost.Calculator
	AILimit      int
}

// Server handles the HTTP API.
type Server struct {
	deps    Deps
	origins []string
}

// NewServer creates a Server.
func NewServer(deps Deps, cfg config.ServerConfig) *Server {
	if deps.Pricing == nil {
		deps.Pricing = cost.NewCalculator(config.PricingConfig{})
	}
	return &Server{deps: deps, origins: cfg.AllowedOrigins}
}

// Handler returns the routed handler with CORS, request ids, panic
// recovery and access logging applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/tools", s.handleTools)
		r.Post("/search", s.handleSearch)
		r.Post("/orchestrate", s.handleOrchestrate)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"search":        s.deps.Engine.Configured(),
		"ai_scoring":    s.deps.Scorer.AIEnabled(),
		"orchestration": s.deps.Orchestrator.Configured(),
	})
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Registry == nil {
		writeJSON(w, http.StatusOK, map[string]any{"tools": []tools.Spec{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.deps.Registry.Specs(tools.AllEnabled)})
}

type searchBody struct {
	Query      string   `json:"query"`
	Location   string   `json:"location"`
	MaxResults int      `json:"max_results"`
	MinRating  *float64 `json:"min_rating"`
	Website    string   `json:"website"`
	Industry   string   `json:"industry"`
	Score      bool     `json:"score"`
}

// request builds the engine request. With no explicit location the query
// is parsed as a sentence ("plumbers with no website in Reno").
func (b searchBody) request() (search.Request, error) {
	website, err := lead.ParseWebsiteFilter(b.Website)
	if err != nil {
		return search.Request{}, err
	}
	req := search.Request{
		Query:      strings.TrimSpace(b.Query),
		Location:   strings.TrimSpace(b.Location),
		MaxResults: b.MaxResults,
		MinRating:  b.MinRating,
		Website:    website,
		Industry:   b.Industry,
	}
	if req.Location == "" {
		parsed := search.ParseRequest(req.Query)
		req.Query, req.Location = parsed.Query, parsed.Location
		if req.MinRating == nil {
			req.MinRating = parsed.MinRating
		}
		if strings.TrimSpace(b.Website) == "" {
			req.Website = parsed.Website
		}
	}
	if req.MinRating != nil && (*req.MinRating < 0 || *req.MinRating > 5) {
		return search.Request{}, errors.New("min_rating must be between 0 and 5")
	}
	return req, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body searchBody
	if !decodeBody(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	req, err := body.request()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID := middleware.GetReqID(r.Context())
	tracker := cost.NewTracker(s.deps.Pricing)
	ctx := cost.WithTracker(r.Context(), tracker)
	defer tracker.Log(runID)

	resp, err := s.deps.Engine.Search(ctx, req)
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			writeError(w, http.StatusBadRequest, "query is required")
			return
		}
		zap.L().Error("api: search failed", zap.String("request_id", runID), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if body.Score && len(resp.Leads) > 0 {
		resp.Leads = lead.Rank(s.deps.Scorer.ScoreBatch(ctx, resp.Leads, s.deps.AILimit))
	}
	writeJSON(w, http.StatusOK, searchResponse{Response: resp, CostUSD: tracker.Total()})
}

type searchResponse struct {
	*search.Response
	CostUSD float64 `json:"cost_usd"`
}

func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	var req agent.Request
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if !s.deps.Orchestrator.Configured() {
		writeError(w, http.StatusServiceUnavailable, "orchestration is not configured; set anthropic.key")
		return
	}

	res, err := s.deps.Orchestrator.Run(r.Context(), req)
	if err != nil {
		zap.L().Error("api: orchestration failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Header().Set(middleware.RequestIDHeader, middleware.GetReqID(r.Context()))
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
