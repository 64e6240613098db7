// Package agent runs the bounded tool-using orchestration loop: a reasoning
// model picks tools from the catalog, the executor runs them, and the leads
// they return are accumulated, deduplicated and ranked.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/cost"
	"github.com/sells-group/lead-engine/internal/lead"
	"github.com/sells-group/lead-engine/internal/resilience"
	"github.com/sells-group/lead-engine/internal/tools"
	"github.com/sells-group/lead-engine/pkg/anthropic"
)

// Loop defaults.
const (
	DefaultMaxIterations      = 5
	DefaultMaxToolResultChars = 12000
	DefaultMaxHistoryChars    = 120000
	DefaultModel              = "claude-sonnet-4-5-20250929"
	DefaultMaxTokens          = 4096
)

var (
	// ErrEmptyQuery is returned when the request has no query text.
	ErrEmptyQuery = eris.New("agent: query is required")
	// ErrNoModel is returned when no reasoning model client is configured.
	ErrNoModel = eris.New("agent: no reasoning model configured; set anthropic.key")
)

// Request is one orchestration request.
type Request struct {
	Query                 string `json:"query"`
	MaxIterations         int    `json:"max_iterations,omitempty"`
	EnableEmailEnrichment bool   `json:"enable_email_enrichment,omitempty"`
	EnableWebsiteAnalysis bool   `json:"enable_website_analysis,omitempty"`
}

// ExecutionStep records one dispatched tool call. Steps are numbered from 1
// in dispatch order across the whole run.
type ExecutionStep struct {
	Step      int             `json:"step"`
	Iteration int             `json:"iteration"`
	Tool      string          `json:"tool"`
	Input     json.RawMessage `json:"input"`
	Output    tools.Result    `json:"output"`
	Rationale string          `json:"rationale,omitempty"`
}

// Metadata summarizes a run.
type Metadata struct {
	Count           int      `json:"count"`
	Sources         []string `json:"sources"`
	Confidence      float64  `json:"confidence"`
	Iterations      int      `json:"iterations"`
	BudgetExhausted bool     `json:"budget_exhausted"`
	Degraded        bool     `json:"degraded"`
	Warnings        []string `json:"warnings"`
	CostUSD         float64  `json:"cost_usd"`
	RunID           string   `json:"run_id"`
}

// Result is the outcome of one orchestration run.
type Result struct {
	Leads          []lead.Lead     `json:"leads"`
	Reasoning      string          `json:"reasoning"`
	ToolsUsed      []string        `json:"tools_used"`
	ExecutionSteps []ExecutionStep `json:"execution_steps"`
	Metadata       Metadata        `json:"metadata"`
}

// Orchestrator runs the agent loop. It holds no per-run state and is safe
// for concurrent Run calls.
type Orchestrator struct {
	client          anthropic.Client
	registry        *tools.Registry
	guard           *resilience.Guard
	calc            *cost.Calculator
	model           string
	maxTokens       int64
	maxIterations   int
	toolConcurrency int
	callTimeout     time.Duration
	maxResultChars  int
	maxHistoryChars int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithModel sets the reasoning model and its output token cap.
func WithModel(model string, maxTokens int64) Option {
	return func(o *Orchestrator) {
		if model != "" {
			o.model = model
		}
		if maxTokens > 0 {
			o.maxTokens = maxTokens
		}
	}
}

// WithGuard wraps model calls with retries and a circuit breaker.
func WithGuard(g *resilience.Guard) Option {
	return func(o *Orchestrator) { o.guard = g }
}

// WithPricing sets the rates used for per-run cost tracking.
func WithPricing(calc *cost.Calculator) Option {
	return func(o *Orchestrator) {
		if calc != nil {
			o.calc = calc
		}
	}
}

// WithLimits applies the agent section of the configuration.
func WithLimits(cfg config.AgentConfig) Option {
	return func(o *Orchestrator) {
		if cfg.MaxIterations > 0 {
			o.maxIterations = cfg.MaxIterations
		}
		if cfg.ToolConcurrency > 0 {
			o.toolConcurrency = cfg.ToolConcurrency
		}
		if cfg.MaxToolResultChars > 0 {
			o.maxResultChars = cfg.MaxToolResultChars
		}
		if cfg.MaxHistoryChars > 0 {
			o.maxHistoryChars = cfg.MaxHistoryChars
		}
	}
}

// WithCallTimeout bounds each tool call.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.callTimeout = d }
}

// New creates an Orchestrator. client may be nil, in which case Run fails
// with ErrNoModel.
func New(client anthropic.Client, registry *tools.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:          client,
		registry:        registry,
		calc:            cost.NewCalculator(config.PricingConfig{}),
		model:           DefaultModel,
		maxTokens:       DefaultMaxTokens,
		maxIterations:   DefaultMaxIterations,
		toolConcurrency: tools.DefaultConcurrency,
		callTimeout:     tools.DefaultCallTimeout,
		maxResultChars:  DefaultMaxToolResultChars,
		maxHistoryChars: DefaultMaxHistoryChars,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Configured reports whether a reasoning model is available.
func (o *Orchestrator) Configured() bool {
	return o != nil && o.client != nil
}

// Run satisfies req by letting the model call tools for at most
// req.MaxIterations turns. Tool failures never stop the loop. A model
// failure returns the leads gathered so far as a degraded result, or the
// error when there are none.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if !o.Configured() {
		return nil, ErrNoModel
	}

	maxIter := req.MaxIterations
	if maxIter <= 0 {
		maxIter = o.maxIterations
	}
	opts := tools.Options{
		EnableEmailEnrichment: req.EnableEmailEnrichment,
		EnableWebsiteAnalysis: req.EnableWebsiteAnalysis,
	}

	r := &run{
		id:      uuid.NewString(),
		tracker: cost.NewTracker(o.calc),
		used:    make(map[string]bool),
		offered: make(map[tools.ToolName]bool),
	}
	for _, spec := range o.registry.Specs(opts) {
		r.offered[spec.Name] = true
	}
	ctx = cost.WithTracker(ctx, r.tracker)
	log := zap.L().With(zap.String("run_id", r.id))
	log.Info("agent: run started", zap.String("query", query), zap.Int("max_iterations", maxIter))

	exec := tools.NewExecutor(o.registry, opts,
		tools.WithCallTimeout(o.callTimeout),
		tools.WithConcurrency(o.toolConcurrency),
	)
	msgReq := anthropic.MessageRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		System:    []anthropic.SystemBlock{{Text: systemPrompt, CacheControl: &anthropic.CacheControl{}}},
		Tools:     o.registry.Definitions(opts),
	}
	conv := newConversation(o.maxHistoryChars)
	conv.add(anthropic.UserText(userPrompt(query, opts)))

	for iter := 1; iter <= maxIter; iter++ {
		msgReq.Messages = conv.messages()
		resp, err := resilience.Call(ctx, o.guard, cost.Anthropic, "create_message",
			func(ctx context.Context) (*anthropic.MessageResponse, error) {
				return o.client.CreateMessage(ctx, msgReq)
			})
		if err != nil {
			log.Warn("agent: model call failed", zap.Int("iteration", iter), zap.Error(err))
			if len(r.leads) == 0 {
				r.tracker.Log(r.id)
				return nil, eris.Wrapf(err, "agent: iteration %d", iter)
			}
			r.degraded = true
			r.warnings = append(r.warnings, fmt.Sprintf("reasoning model failed at iteration %d: %v", iter, err))
			return o.finish(r, fmt.Sprintf("Stopped early after a reasoning model error; returning %d leads gathered so far.", len(r.leads))), nil
		}
		r.iterations = iter
		r.tracker.AddClaude(o.model,
			resp.Usage.InputTokens, resp.Usage.OutputTokens,
			resp.Usage.CacheCreationInputTokens, resp.Usage.CacheReadInputTokens)

		uses := resp.ToolUses()
		if len(uses) == 0 {
			summary := strings.TrimSpace(resp.Text())
			if summary == "" {
				summary = fmt.Sprintf("Completed with %d leads.", len(r.leads))
			}
			log.Info("agent: model completed", zap.Int("iteration", iter), zap.String("stop_reason", resp.StopReason))
			return o.finish(r, summary), nil
		}

		conv.add(anthropic.Message{Role: "assistant", Content: resp.Content})

		calls := make([]tools.Call, len(uses))
		for i, u := range uses {
			calls[i] = tools.Call{ID: u.ID, Name: tools.ToolName(u.Name), Input: u.Input}
		}
		log.Debug("agent: dispatching tools", zap.Int("iteration", iter), zap.Int("calls", len(calls)))
		results := exec.ExecuteAll(ctx, calls)

		rationale := strings.TrimSpace(resp.Text())
		blocks := make([]anthropic.ContentBlock, len(results))
		for i, res := range results {
			r.record(iter, calls[i], res, rationale)
			blocks[i] = toolResultBlock(res, o.maxResultChars)
		}
		conv.add(anthropic.Message{Role: "user", Content: blocks})
	}

	r.exhausted = true
	log.Info("agent: iteration budget exhausted", zap.Int("max_iterations", maxIter))
	return o.finish(r, fmt.Sprintf("Iteration budget of %d exhausted before the model finished; returning %d leads gathered so far.", maxIter, len(r.leads))), nil
}

func (o *Orchestrator) finish(r *run, summary string) *Result {
	leads := lead.Rank(lead.Dedupe(r.leads))

	var sources []string
	seen := make(map[string]bool)
	for _, l := range leads {
		if l.Source != "" && !seen[l.Source] {
			seen[l.Source] = true
			sources = append(sources, l.Source)
		}
	}

	conf := Confidence(len(r.toolsUsed), len(leads))
	if r.degraded {
		conf /= 2
	}

	res := &Result{
		Leads:          leads,
		Reasoning:      summary,
		ToolsUsed:      append([]string{}, r.toolsUsed...),
		ExecutionSteps: append([]ExecutionStep{}, r.steps...),
		Metadata: Metadata{
			Count:           len(leads),
			Sources:         append([]string{}, sources...),
			Confidence:      conf,
			Iterations:      r.iterations,
			BudgetExhausted: r.exhausted,
			Degraded:        r.degraded,
			Warnings:        append([]string{}, r.warnings...),
			CostUSD:         r.tracker.Total(),
			RunID:           r.id,
		},
	}
	r.tracker.Log(r.id)
	zap.L().Info("agent: run complete",
		zap.String("run_id", r.id),
		zap.Int("leads", len(leads)),
		zap.Int("steps", len(r.steps)),
		zap.Float64("confidence", conf),
		zap.Bool("degraded", r.degraded),
	)
	return res
}

// Confidence rewards tool diversity and result volume, saturating at 1.
func Confidence(toolsUsed, leadsFound int) float64 {
	diversity := min(float64(toolsUsed)/3, 1)
	volume := min(float64(leadsFound)/20, 1)
	return min(1, 0.5*diversity+0.5*volume)
}
