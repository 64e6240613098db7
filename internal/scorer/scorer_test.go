package scorer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/cost"
	"github.com/sells-group/lead-engine/internal/lead"
	"github.com/sells-group/lead-engine/pkg/anthropic"
	"github.com/sells-group/lead-engine/pkg/anthropic/mocks"
)

func ptrF(f float64) *float64 { return &f }
func ptrI(i int) *int         { return &i }

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: anthropic.BlockText, Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 200, OutputTokens: 40},
	}
}

func sampleLead() lead.Lead {
	return lead.Lead{
		Name:             "ABC Plumbing",
		Industry:         "Plumber",
		Phone:            lead.StringPtr("(505) 555-0100"),
		Address:          "12 Cerrillos Rd, Santa Fe, NM 87505",
		City:             "Santa Fe",
		State:            "NM",
		Rating:           ptrF(4.6),
		ReviewCount:      ptrI(120),
		OpportunityScore: lead.DefaultOpportunityScore,
		PainPoints:       []string{},
	}
}

func TestHeuristic(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*lead.Lead)
		score int
	}{
		{"strong business", func(l *lead.Lead) { l.Website = lead.StringPtr("https://abc.com") }, 40},
		{"no website", func(l *lead.Lead) {}, 60},
		{"low rating", func(l *lead.Lead) { l.Rating = ptrF(3.9) }, 75},
		{"unknown rating and reviews", func(l *lead.Lead) { l.Rating = nil; l.ReviewCount = nil }, 70},
		{"few reviews", func(l *lead.Lead) { l.ReviewCount = ptrI(19) }, 75},
		{"worst case", func(l *lead.Lead) {
			l.Rating = ptrF(2)
			l.ReviewCount = ptrI(1)
			l.Phone = nil
		}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := sampleLead()
			tt.mod(&l)
			got := Heuristic(l)
			assert.Equal(t, tt.score, got.OpportunityScore)
			assert.Empty(t, got.PainPoints)
			assert.NotNil(t, got.PainPoints)
			assert.Contains(t, got.ScoringNote, "heuristic")
		})
	}
}

func TestHeuristic_NoteListsBasis(t *testing.T) {
	l := sampleLead()
	l.Rating = ptrF(3.0)
	got := Heuristic(l)
	assert.Equal(t, "heuristic: no website, rating below 4.0", got.ScoringNote)
}

func TestHeuristic_DoesNotMutateInput(t *testing.T) {
	l := sampleLead()
	l.PainPoints = []string{"old"}
	_ = Heuristic(l)
	assert.Equal(t, []string{"old"}, l.PainPoints)
	assert.Equal(t, lead.DefaultOpportunityScore, l.OpportunityScore)
}

func TestParseAssessment(t *testing.T) {
	a, err := ParseAssessment("```json\n{\"opportunityScore\": 82, \"painPoints\": [\"No website\", \" \", \"Few reviews\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, 82, a.OpportunityScore)
	assert.Equal(t, []string{"No website", "Few reviews"}, a.PainPoints)
}

func TestParseAssessment_CapsPainPoints(t *testing.T) {
	a, err := ParseAssessment(`{"opportunityScore": 10, "painPoints": ["a","b","c","d","e","f","g"]}`)
	require.NoError(t, err)
	assert.Len(t, a.PainPoints, MaxPainPoints)
}

func TestParseAssessment_Rejects(t *testing.T) {
	bad := map[string]string{
		"not json":       "I think this business is great",
		"missing score":  `{"painPoints": []}`,
		"missing pains":  `{"opportunityScore": 50}`,
		"quoted score":   `{"opportunityScore": "50", "painPoints": []}`,
		"fractional":     `{"opportunityScore": 50.5, "painPoints": []}`,
		"too high":       `{"opportunityScore": 101, "painPoints": []}`,
		"negative":       `{"opportunityScore": -1, "painPoints": []}`,
		"null pains":     `{"opportunityScore": 50, "painPoints": null}`,
		"pains not list": `{"opportunityScore": 50, "painPoints": "slow site"}`,
		"mixed pains":    `{"opportunityScore": 50, "painPoints": ["a", 2]}`,
		"truncated":      `{"opportunityScore": 50, "painPoints": ["a"`,
	}
	for name, in := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAssessment(in)
			assert.Error(t, err)
		})
	}
}

func TestScore_ModelPath(t *testing.T) {
	mc := mocks.NewMockClient(t)
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(r anthropic.MessageRequest) bool {
		return r.Model == "test-model" && len(r.Messages) == 1
	})).Return(textResponse(`{"opportunityScore": 88, "painPoints": ["No website"]}`), nil).Once()

	tracker := cost.NewTracker(cost.NewCalculator(config.PricingConfig{
		Anthropic: map[string]config.ModelPricing{"test-model": {Input: 1, Output: 5}},
	}))
	ctx := cost.WithTracker(context.Background(), tracker)

	s := New(mc, WithModel("test-model"))
	got := s.Score(ctx, sampleLead())
	assert.Equal(t, 88, got.OpportunityScore)
	assert.Equal(t, []string{"No website"}, got.PainPoints)
	assert.Equal(t, NoteModel, got.ScoringNote)
	assert.Greater(t, tracker.Total(), 0.0)
}

func TestScore_FallsBackOnTransportError(t *testing.T) {
	mc := mocks.NewMockClient(t)
	mc.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset")).Once()

	got := New(mc).Score(context.Background(), sampleLead())
	assert.Equal(t, 60, got.OpportunityScore)
	assert.Contains(t, got.ScoringNote, "heuristic")
}

func TestScore_FallsBackOnParseError(t *testing.T) {
	mc := mocks.NewMockClient(t)
	mc.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("Score: high"), nil).Once()

	got := New(mc).Score(context.Background(), sampleLead())
	assert.GreaterOrEqual(t, got.OpportunityScore, 0)
	assert.LessOrEqual(t, got.OpportunityScore, 100)
	assert.Contains(t, got.ScoringNote, "heuristic")
}

func TestScore_NoClientUsesHeuristic(t *testing.T) {
	s := New(nil)
	assert.False(t, s.AIEnabled())
	got := s.Score(context.Background(), sampleLead())
	assert.Equal(t, 60, got.OpportunityScore)
}

type countingClient struct {
	calls atomic.Int32
}

func (c *countingClient) CreateMessage(context.Context, anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	c.calls.Add(1)
	return textResponse(`{"opportunityScore": 90, "painPoints": []}`), nil
}

func TestScoreBatch_OnlyFirstNUseModel(t *testing.T) {
	var leads []lead.Lead
	for i := range 15 {
		l := sampleLead()
		l.Name = fmt.Sprintf("Biz %d", i)
		leads = append(leads, l)
	}
	cc := &countingClient{}

	out := New(cc, WithConcurrency(3)).ScoreBatch(context.Background(), leads, 10)

	require.Len(t, out, 15)
	assert.Equal(t, int32(10), cc.calls.Load())
	for i, l := range out {
		assert.Equal(t, fmt.Sprintf("Biz %d", i), l.Name, "order preserved")
		if i < 10 {
			assert.Equal(t, 90, l.OpportunityScore)
		} else {
			assert.Equal(t, lead.DefaultOpportunityScore, l.OpportunityScore)
			assert.Empty(t, l.ScoringNote)
		}
	}
}

func TestScoreBatch_DefaultLimitAndShortInput(t *testing.T) {
	cc := &countingClient{}
	out := New(cc).ScoreBatch(context.Background(), []lead.Lead{sampleLead(), sampleLead()}, 0)
	assert.Len(t, out, 2)
	assert.Equal(t, int32(2), cc.calls.Load())
}

func TestPrompt(t *testing.T) {
	p := Prompt(sampleLead())
	assert.Contains(t, p, "Business: ABC Plumbing")
	assert.Contains(t, p, "Location: Santa Fe, NM")
	assert.Contains(t, p, "Rating: 4.6")
	assert.Contains(t, p, "Website: no")
	assert.Contains(t, p, "Phone: yes")
}
