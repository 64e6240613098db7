// Package search implements the multi-strategy fan-out: one user query is
// reformulated several ways, issued concurrently against a structured
// search backend, merged by provider id and filtered into Leads.
package search

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-engine/internal/lead"
)

// Defaults applied when the caller or config leaves a value unset.
const (
	DefaultMaxResults = 20
	DefaultPerCallCap = 20
	DefaultTimeout    = 20 * time.Second
)

// ErrEmptyQuery is returned for a request with a blank query.
var ErrEmptyQuery = eris.New("search: query is required")

// Backend is a structured business search provider. Search returns at most
// limit records for query.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]lead.RawBusinessRecord, error)
}

// Request is one fan-out search.
type Request struct {
	Query      string             `json:"query"`
	Location   string             `json:"location,omitempty"`
	MaxResults int                `json:"max_results,omitempty"`
	MinRating  *float64           `json:"min_rating,omitempty"`
	Website    lead.WebsiteFilter `json:"website,omitempty"`
	// Industry labels every returned lead; empty derives it per record.
	Industry string `json:"industry,omitempty"`
}

// Response is the merged, filtered result of a fan-out search. TotalFound
// counts the filtered set before MaxResults truncation.
type Response struct {
	Leads       []lead.Lead      `json:"leads"`
	TotalFound  int              `json:"total_found"`
	SearchQuery string           `json:"search_query"`
	Timestamp   string           `json:"timestamp"`
	Strategies  []StrategyReport `json:"strategies,omitempty"`
	Warnings    []string         `json:"warnings,omitempty"`
	Message     string           `json:"message,omitempty"`
}

// StrategyReport records what one strategy contributed.
type StrategyReport struct {
	Strategy
	Returned   int    `json:"returned"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Engine runs fan-out searches. It is safe for concurrent use.
type Engine struct {
	backend    Backend
	table      *BroadeningTable
	perCallCap int
	timeout    time.Duration
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithPerCallCap sets the per-strategy result cap.
func WithPerCallCap(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.perCallCap = n
		}
	}
}

// WithTimeout sets the per-strategy backend timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEngine creates an Engine. A nil backend yields empty responses with an
// explanatory message rather than errors.
func NewEngine(backend Backend, table *BroadeningTable, opts ...Option) *Engine {
	e := &Engine{
		backend:    backend,
		table:      table,
		perCallCap: DefaultPerCallCap,
		timeout:    DefaultTimeout,
		now:        time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Configured reports whether a backend is available.
func (e *Engine) Configured() bool {
	return e != nil && e.backend != nil
}

// Search runs every strategy concurrently and merges the results. It fails
// only for an empty query or when every strategy fails.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	req.Query = strings.TrimSpace(req.Query)
	req.Location = strings.TrimSpace(req.Location)
	if req.Query == "" {
		return nil, ErrEmptyQuery
	}
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	strategies := Strategies(req.Query, req.Location, e.table)
	resp := &Response{
		Leads:       []lead.Lead{},
		SearchQuery: strategies[0].Query,
		Timestamp:   e.now().UTC().Format(time.RFC3339),
	}
	if !e.Configured() {
		resp.Message = "no search backend configured; set google.key to enable business search"
		return resp, nil
	}

	results := make([][]lead.RawBusinessRecord, len(strategies))
	errs := make([]error, len(strategies))
	reports := make([]StrategyReport, len(strategies))

	var g errgroup.Group
	for i, s := range strategies {
		g.Go(func() error {
			start := time.Now()
			callCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			recs, err := e.backend.Search(callCtx, s.Query, e.perCallCap)
			reports[i] = StrategyReport{Strategy: s, DurationMS: time.Since(start).Milliseconds()}
			if err != nil {
				errs[i] = err
				reports[i].Error = err.Error()
				zap.L().Warn("search: strategy failed",
					zap.String("strategy", string(s.Kind)),
					zap.String("query", s.Query),
					zap.Error(err),
				)
				return nil
			}
			if len(recs) > e.perCallCap {
				recs = recs[:e.perCallCap]
			}
			results[i] = recs
			reports[i].Returned = len(recs)
			return nil
		})
	}
	_ = g.Wait()
	resp.Strategies = reports

	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			resp.Warnings = append(resp.Warnings, string(strategies[i].Kind)+" strategy failed: "+err.Error())
		}
	}
	if failed == len(strategies) {
		return nil, eris.Wrapf(errs[0], "search: all %d strategies failed", failed)
	}

	merged := Merge(results...)
	leads := lead.ConvertAll(merged, req.Industry, e.backend.Name())
	filtered := lead.Filter{MinRating: req.MinRating, Website: req.Website}.Apply(leads)

	resp.TotalFound = len(filtered)
	if len(filtered) > maxResults {
		filtered = filtered[:maxResults]
	}
	resp.Leads = filtered

	zap.L().Info("search: fan-out complete",
		zap.String("query", req.Query),
		zap.String("location", req.Location),
		zap.Int("strategies", len(strategies)),
		zap.Int("failed", failed),
		zap.Int("merged", len(merged)),
		zap.Int("returned", len(resp.Leads)),
	)
	return resp, nil
}

// Merge unions record sets, keeping the first record seen for each
// provider id (or, lacking one, each case-insensitive display name).
func Merge(sets ...[]lead.RawBusinessRecord) []lead.RawBusinessRecord {
	seen := make(map[string]struct{})
	var out []lead.RawBusinessRecord
	for _, set := range sets {
		for _, r := range set {
			k := mergeKey(r)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

func mergeKey(r lead.RawBusinessRecord) string {
	if id := strings.TrimSpace(r.ID); id != "" {
		return "id:" + id
	}
	return "name:" + strings.ToLower(strings.Join(strings.Fields(r.Name), " "))
}
