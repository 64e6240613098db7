// Package tools defines the closed catalog of capabilities the agent loop
// may invoke, a schema validator for model-produced input, and an executor
// that turns every failure into a structured Result.
package tools

import (
	"context"
	"encoding/json"

	"github.com/sells-group/lead-engine/internal/lead"
)

// ToolName identifies a tool in the catalog.
type ToolName string

// The catalog. Registration order is the order the model sees.
const (
	SearchGooglePlaces         ToolName = "search_google_places"
	MultiStrategySearch        ToolName = "multi_strategy_search"
	SearchPerplexityBusinesses ToolName = "search_perplexity_businesses"
	EnrichContactEmail         ToolName = "enrich_contact_email"
	AnalyzeWebsite             ToolName = "analyze_website"
	ScoreOpportunity           ToolName = "score_opportunity"
	ResearchCompetitors        ToolName = "research_competitors"
	VerifyBusiness             ToolName = "verify_business"
)

// AllNames lists every tool in catalog order.
var AllNames = []ToolName{
	SearchGooglePlaces,
	MultiStrategySearch,
	SearchPerplexityBusinesses,
	EnrichContactEmail,
	AnalyzeWebsite,
	ScoreOpportunity,
	ResearchCompetitors,
	VerifyBusiness,
}

// Property describes one input field.
type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	Items       *Property `json:"items,omitempty"`
	Minimum     *float64  `json:"minimum,omitempty"`
	Maximum     *float64  `json:"maximum,omitempty"`
}

// Schema is the JSON Schema subset tools declare for their input: an
// object with typed properties and a required subset.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Spec is a tool's catalog entry.
type Spec struct {
	Name        ToolName `json:"name"`
	Description string   `json:"description"`
	InputSchema Schema   `json:"input_schema"`
}

// Call is one model-requested tool invocation.
type Call struct {
	ID    string          `json:"id"`
	Name  ToolName        `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ScoreUpdate carries a scorer outcome for the lead named Name.
type ScoreUpdate struct {
	Name             string   `json:"name"`
	OpportunityScore int      `json:"opportunity_score"`
	PainPoints       []string `json:"pain_points"`
	ScoringNote      string   `json:"scoring_note,omitempty"`
}

// ContactUpdate carries an email found for the lead with the given
// website.
type ContactUpdate struct {
	Website string `json:"website"`
	Email   string `json:"email"`
	Source  string `json:"source"`
}

// Result is the outcome of one call. A non-empty Error means the call
// failed; the other fields are then best-effort.
type Result struct {
	CallID     string          `json:"call_id"`
	Tool       ToolName        `json:"tool"`
	Leads      []lead.Lead     `json:"leads,omitempty"`
	Scores     []ScoreUpdate   `json:"scores,omitempty"`
	Contacts   []ContactUpdate `json:"contacts,omitempty"`
	Data       any             `json:"data,omitempty"`
	Message    string          `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMS int64           `json:"duration_ms"`
}

// Failed reports whether the call failed.
func (r Result) Failed() bool { return r.Error != "" }

// Tool is one catalog entry's implementation. Execute receives input that
// has already passed schema validation.
type Tool interface {
	Spec() Spec
	Execute(ctx context.Context, input json.RawMessage) (Result, error)
}

// Options toggle the optional enrichment tools for one run.
type Options struct {
	EnableEmailEnrichment bool `json:"enable_email_enrichment"`
	EnableWebsiteAnalysis bool `json:"enable_website_analysis"`
}

// AllEnabled enables every optional tool.
var AllEnabled = Options{EnableEmailEnrichment: true, EnableWebsiteAnalysis: true}

// Enabled reports whether name is available under o.
func (o Options) Enabled(name ToolName) bool {
	switch name {
	case EnrichContactEmail:
		return o.EnableEmailEnrichment
	case AnalyzeWebsite:
		return o.EnableWebsiteAnalysis
	default:
		return true
	}
}

func ptr(f float64) *float64 { return &f }
