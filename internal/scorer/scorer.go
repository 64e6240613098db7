// Package scorer estimates how promising a Lead is as a sales prospect.
// The primary path asks a model for a 0-100 score and pain points; any
// transport or parse failure falls back to a deterministic heuristic.
package scorer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-engine/internal/cost"
	"github.com/sells-group/lead-engine/internal/lead"
	"github.com/sells-group/lead-engine/internal/resilience"
	"github.com/sells-group/lead-engine/pkg/anthropic"
)

// Defaults used when configuration leaves a value unset.
const (
	DefaultAILimit     = 10
	DefaultConcurrency = 4
	DefaultModel       = "claude-haiku-4-5-20251001"
	defaultMaxTokens   = 400
)

// NoteModel is the ScoringNote recorded on model-scored leads.
const NoteModel = "model assessment"

const systemPrompt = `You assess small local businesses as prospects for a digital marketing agency.
Reply with only a JSON object: {"opportunityScore": <integer 0-100>, "painPoints": [<up to 5 short strings>]}.
Higher scores mean the business would benefit more from help with its online presence.`

// Scorer scores leads. A Scorer without a client always uses the heuristic.
type Scorer struct {
	client      anthropic.Client
	guard       *resilience.Guard
	model       string
	maxTokens   int64
	concurrency int
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithModel sets the scoring model.
func WithModel(model string) Option {
	return func(s *Scorer) {
		if model != "" {
			s.model = model
		}
	}
}

// WithConcurrency bounds concurrent model calls in ScoreBatch.
func WithConcurrency(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithGuard wraps model calls with retries and a circuit breaker.
func WithGuard(g *resilience.Guard) Option {
	return func(s *Scorer) { s.guard = g }
}

// New creates a Scorer. client may be nil.
func New(client anthropic.Client, opts ...Option) *Scorer {
	s := &Scorer{
		client:      client,
		model:       DefaultModel,
		maxTokens:   defaultMaxTokens,
		concurrency: DefaultConcurrency,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AIEnabled reports whether the model path is available.
func (s *Scorer) AIEnabled() bool {
	return s != nil && s.client != nil
}

// Score returns a scored copy of l. It never fails: without a client, or
// when the model call or its response is unusable, the heuristic is used.
func (s *Scorer) Score(ctx context.Context, l lead.Lead) lead.Lead {
	if !s.AIEnabled() {
		return Heuristic(l)
	}

	a, err := s.assess(ctx, l)
	if err != nil {
		zap.L().Warn("scorer: model scoring failed, using heuristic",
			zap.String("lead", l.Name),
			zap.Error(err),
		)
		return Heuristic(l)
	}

	out := l.Clone()
	out.OpportunityScore = a.OpportunityScore
	out.PainPoints = a.PainPoints
	out.ScoringNote = NoteModel
	return out
}

// ScoreBatch scores the first aiLimit leads concurrently and returns the
// rest unchanged, in input order. aiLimit <= 0 uses DefaultAILimit.
func (s *Scorer) ScoreBatch(ctx context.Context, leads []lead.Lead, aiLimit int) []lead.Lead {
	if aiLimit <= 0 {
		aiLimit = DefaultAILimit
	}
	out := make([]lead.Lead, len(leads))
	for i, l := range leads {
		out[i] = l.Clone()
	}

	n := min(aiLimit, len(leads))
	limit := DefaultConcurrency
	if s != nil {
		limit = s.concurrency
	}
	g := new(errgroup.Group)
	g.SetLimit(limit)
	for i := range n {
		g.Go(func() error {
			out[i] = s.Score(ctx, leads[i])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Scorer) assess(ctx context.Context, l lead.Lead) (Assessment, error) {
	resp, err := resilience.Call(ctx, s.guard, cost.Anthropic, "score",
		func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return s.client.CreateMessage(ctx, anthropic.MessageRequest{
				Model:     s.model,
				MaxTokens: s.maxTokens,
				System:    []anthropic.SystemBlock{{Text: systemPrompt, CacheControl: &anthropic.CacheControl{TTL: "5m"}}},
				Messages:  []anthropic.Message{anthropic.UserText(Prompt(l))},
			})
		})
	if err != nil {
		return Assessment{}, err
	}
	cost.FromContext(ctx).AddClaude(s.model,
		resp.Usage.InputTokens, resp.Usage.OutputTokens,
		resp.Usage.CacheCreationInputTokens, resp.Usage.CacheReadInputTokens,
	)
	return ParseAssessment(resp.Text())
}

// Prompt describes l compactly for the scoring model.
func Prompt(l lead.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Business: %s\n", l.Name)
	fmt.Fprintf(&b, "Industry: %s\n", l.Industry)
	loc := strings.Trim(strings.Join([]string{l.City, l.State}, ", "), ", ")
	if loc == "" {
		loc = l.Address
	}
	fmt.Fprintf(&b, "Location: %s\n", loc)
	if l.Rating != nil {
		fmt.Fprintf(&b, "Rating: %.1f\n", *l.Rating)
	} else {
		b.WriteString("Rating: unknown\n")
	}
	if l.ReviewCount != nil {
		fmt.Fprintf(&b, "Reviews: %d\n", *l.ReviewCount)
	} else {
		b.WriteString("Reviews: unknown\n")
	}
	fmt.Fprintf(&b, "Website: %s\n", yesNo(l.HasWebsite()))
	fmt.Fprintf(&b, "Phone: %s\n", yesNo(lead.Deref(l.Phone) != ""))
	return b.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
