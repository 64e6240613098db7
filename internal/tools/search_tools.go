package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-engine/internal/cost"
	"github.com/sells-group/lead-engine/internal/lead"
	"github.com/sells-group/lead-engine/internal/llmjson"
	"github.com/sells-group/lead-engine/internal/resilience"
	"github.com/sells-group/lead-engine/internal/search"
	"github.com/sells-group/lead-engine/pkg/perplexity"
)

// ProviderPerplexity is the Source recorded on leads listed by Perplexity.
const ProviderPerplexity = "perplexity"

const maxListResults = 20

var (
	queryProp     = Property{Type: "string", Description: "What to look for, e.g. \"plumbers\" or \"vegan bakeries\"."}
	locationProp  = Property{Type: "string", Description: "City, region or address to search around."}
	maxResultProp = Property{Type: "integer", Description: "Maximum leads to return (1-20).", Minimum: ptr(1), Maximum: ptr(maxListResults)}
	minRatingProp = Property{Type: "number", Description: "Drop businesses rated below this (0-5). Unrated businesses are kept.", Minimum: ptr(0), Maximum: ptr(5)}
	industryProp  = Property{Type: "string", Description: "Industry label to attach to every lead."}
)

type searchInput struct {
	Query      string   `json:"query"`
	Location   string   `json:"location"`
	MaxResults int      `json:"max_results"`
	MinRating  *float64 `json:"min_rating"`
	Website    string   `json:"website"`
	Industry   string   `json:"industry"`
}

func (in searchInput) limit() int {
	if in.MaxResults <= 0 || in.MaxResults > maxListResults {
		return maxListResults
	}
	return in.MaxResults
}

func (in searchInput) text() string {
	if in.Location == "" {
		return in.Query
	}
	return in.Query + " in " + in.Location
}

// placesTool runs one Places text search without reformulation.
type placesTool struct{ deps Deps }

func (t *placesTool) Spec() Spec {
	return Spec{
		Name:        SearchGooglePlaces,
		Description: "Search Google Places once for businesses matching a query and location. Returns leads with phone, website, rating and review count.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"query":       queryProp,
				"location":    locationProp,
				"max_results": maxResultProp,
				"min_rating":  minRatingProp,
				"industry":    industryProp,
			},
			Required: []string{"query"},
		},
	}
}

func (t *placesTool) Execute(ctx context.Context, input json.RawMessage) (Result, error) {
	in, err := decodeInput[searchInput](input)
	if err != nil {
		return Result{}, err
	}
	if t.deps.Places == nil {
		return notConfigured("Google Places"), nil
	}

	recs, err := t.deps.Places.Search(ctx, in.text(), in.limit())
	if err != nil {
		return Result{}, err
	}
	leads := lead.ConvertAll(recs, in.Industry, t.deps.Places.Name())
	leads = lead.Filter{MinRating: in.MinRating}.Apply(leads)
	if len(leads) > in.limit() {
		leads = leads[:in.limit()]
	}
	return Result{Leads: leads, Data: map[string]any{"query": in.text(), "returned": len(recs)}}, nil
}

// fanoutTool runs the multi-strategy search engine.
type fanoutTool struct{ deps Deps }

func (t *fanoutTool) Spec() Spec {
	return Spec{
		Name: MultiStrategySearch,
		Description: "Search with several reformulations of the query at once (exact, broadened category, category only) and merge the results. " +
			"Prefer this for niche queries like specific dishes or services.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"query":       queryProp,
				"location":    locationProp,
				"max_results": maxResultProp,
				"min_rating":  minRatingProp,
				"website": {
					Type:        "string",
					Description: "Website filter: any, required (must have one) or absent (must not have one).",
					Enum:        []string{string(lead.WebsiteAny), string(lead.WebsiteRequired), string(lead.WebsiteAbsent)},
				},
				"industry": industryProp,
			},
			Required: []string{"query"},
		},
	}
}

func (t *fanoutTool) Execute(ctx context.Context, input json.RawMessage) (Result, error) {
	in, err := decodeInput[searchInput](input)
	if err != nil {
		return Result{}, err
	}
	if t.deps.Engine == nil {
		return notConfigured("multi-strategy search"), nil
	}
	website, err := lead.ParseWebsiteFilter(in.Website)
	if err != nil {
		return Result{}, err
	}

	resp, err := t.deps.Engine.Search(ctx, search.Request{
		Query:      in.Query,
		Location:   in.Location,
		MaxResults: in.limit(),
		MinRating:  in.MinRating,
		Website:    website,
		Industry:   in.Industry,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{
		Leads:   resp.Leads,
		Message: resp.Message,
		Data: map[string]any{
			"total_found":  resp.TotalFound,
			"search_query": resp.SearchQuery,
			"strategies":   resp.Strategies,
			"warnings":     resp.Warnings,
		},
	}, nil
}

// perplexityBusinessesTool asks Perplexity's web-grounded model to list
// businesses as JSON.
type perplexityBusinessesTool struct{ deps Deps }

func (t *perplexityBusinessesTool) Spec() Spec {
	return Spec{
		Name: SearchPerplexityBusinesses,
		Description: "Ask a web-search model to list local businesses. Useful for businesses missing from map listings " +
			"(home-based, new, or without a storefront). Results have lower contact-data confidence.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"query":       queryProp,
				"location":    locationProp,
				"max_results": maxResultProp,
				"industry":    industryProp,
			},
			Required: []string{"query"},
		},
	}
}

// ListedBusiness is one entry of a model-produced business list.
type ListedBusiness struct {
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Phone       string   `json:"phone"`
	Website     string   `json:"website"`
	Rating      *float64 `json:"rating"`
	ReviewCount *int     `json:"review_count"`
	Category    string   `json:"category"`
}

func (t *perplexityBusinessesTool) Execute(ctx context.Context, input json.RawMessage) (Result, error) {
	in, err := decodeInput[searchInput](input)
	if err != nil {
		return Result{}, err
	}
	if t.deps.Perplexity == nil {
		return notConfigured("Perplexity"), nil
	}

	prompt := fmt.Sprintf(`List up to %d real, currently operating businesses matching "%s".
Reply with only a JSON array. Each element: {"name": string, "address": string (full street address), "phone": string, "website": string, "rating": number or null, "review_count": integer or null, "category": string}.
Use "" for unknown strings. Do not invent contact details.`, in.limit(), in.text())

	text, err := askPerplexity(ctx, t.deps, prompt)
	if err != nil {
		return Result{}, err
	}
	listed, err := ParseBusinessList(text)
	if err != nil {
		return Result{}, err
	}

	recs := make([]lead.RawBusinessRecord, 0, len(listed))
	for _, b := range listed {
		r := lead.RawBusinessRecord{
			Name:             b.Name,
			FormattedAddress: b.Address,
			Phone:            b.Phone,
			Website:          b.Website,
			Rating:           b.Rating,
			ReviewCount:      b.ReviewCount,
			Provider:         ProviderPerplexity,
		}
		if b.Category != "" {
			r.Types = []string{strings.ToLower(strings.ReplaceAll(b.Category, " ", "_"))}
		}
		recs = append(recs, r)
	}
	leads := lead.ConvertAll(recs, in.Industry, ProviderPerplexity)
	if len(leads) > in.limit() {
		leads = leads[:in.limit()]
	}
	return Result{Leads: leads, Data: map[string]any{"listed": len(listed)}}, nil
}

// ParseBusinessList strictly parses a model-produced JSON array of
// businesses. Every element must be an object with a non-empty name.
func ParseBusinessList(text string) ([]ListedBusiness, error) {
	raw, err := llmjson.Array(text)
	if err != nil {
		return nil, eris.Wrap(err, "tools: parse business list")
	}
	var out []ListedBusiness
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, eris.Wrap(err, "tools: parse business list")
	}
	for i, b := range out {
		if strings.TrimSpace(b.Name) == "" {
			return nil, eris.Errorf("tools: parse business list: element %d has no name", i)
		}
	}
	return out, nil
}

func askPerplexity(ctx context.Context, deps Deps, prompt string) (string, error) {
	resp, err := resilience.Call(ctx, deps.Guard, cost.Perplexity, "chat",
		func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
			return deps.Perplexity.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
				Model: deps.PerplexityModel,
				Messages: []perplexity.Message{
					{Role: "system", Content: "You are a precise local business research assistant. Answer only with the requested JSON."},
					{Role: "user", Content: prompt},
				},
			})
		})
	cost.FromContext(ctx).AddPerplexityQuery()
	if err != nil {
		return "", eris.Wrap(err, "tools: perplexity")
	}
	text := resp.Content()
	if strings.TrimSpace(text) == "" {
		return "", eris.New("tools: perplexity returned no content")
	}
	return text, nil
}
