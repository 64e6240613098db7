package tools

import (
	"context"
	"encoding/json"

	"github.com/sells-group/lead-engine/internal/lead"
	"github.com/sells-group/lead-engine/internal/scorer"
)

// scoreTool scores leads the model passes back by value.
type scoreTool struct{ deps Deps }

type scoreInput struct {
	Leads []lead.Lead `json:"leads"`
}

func (t *scoreTool) Spec() Spec {
	return Spec{
		Name: ScoreOpportunity,
		Description: "Score leads 0-100 as sales opportunities and list their likely pain points. " +
			"Pass the leads found so far (at least name; include industry, city, state, rating, review_count, phone and website when known).",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"leads": {
					Type:        "array",
					Description: "Leads to score, as returned by the search tools.",
					Items:       &Property{Type: "object"},
				},
			},
			Required: []string{"leads"},
		},
	}
}

func (t *scoreTool) Execute(ctx context.Context, input json.RawMessage) (Result, error) {
	in, err := decodeInput[scoreInput](input)
	if err != nil {
		return Result{}, err
	}
	s := t.deps.Scorer
	if s == nil {
		s = scorer.New(nil)
	}

	var named []lead.Lead
	for _, l := range in.Leads {
		if l.Name != "" {
			named = append(named, l)
		}
	}
	scored := s.ScoreBatch(ctx, named, t.deps.AILimit)

	limit := t.deps.AILimit
	if limit <= 0 {
		limit = scorer.DefaultAILimit
	}
	updates := make([]ScoreUpdate, 0, min(limit, len(scored)))
	for i, l := range scored {
		if i >= limit {
			break
		}
		updates = append(updates, ScoreUpdate{
			Name:             l.Name,
			OpportunityScore: l.OpportunityScore,
			PainPoints:       l.PainPoints,
			ScoringNote:      l.ScoringNote,
		})
	}
	res := Result{Scores: updates}
	if skipped := len(scored) - len(updates); skipped > 0 {
		res.Message = "scored the first leads only; the rest keep the default score"
		res.Data = map[string]any{"skipped": skipped}
	}
	return res, nil
}
