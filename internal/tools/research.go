package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-engine/internal/llmjson"
)

// Competitor is one rival business found by research_competitors.
type Competitor struct {
	Name      string   `json:"name"`
	Website   string   `json:"website"`
	Rating    *float64 `json:"rating"`
	Strengths []string `json:"strengths"`
}

// CompetitorReport is the parsed research_competitors payload.
type CompetitorReport struct {
	Competitors   []Competitor `json:"competitors"`
	MarketSummary string       `json:"market_summary"`
}

// Verification is the parsed verify_business payload.
type Verification struct {
	Exists          bool    `json:"exists"`
	OperatingStatus string  `json:"operating_status"`
	Confidence      float64 `json:"confidence"`
	VerifiedPhone   string  `json:"verified_phone"`
	VerifiedWebsite string  `json:"verified_website"`
	Notes           string  `json:"notes"`
}

var operatingStatuses = []string{"operating", "temporarily_closed", "permanently_closed", "unknown"}

// competitorsTool researches a lead's local competition.
type competitorsTool struct{ deps Deps }

type competitorsInput struct {
	BusinessName string `json:"business_name"`
	Location     string `json:"location"`
	Industry     string `json:"industry"`
}

func (t *competitorsTool) Spec() Spec {
	return Spec{
		Name:        ResearchCompetitors,
		Description: "Research the main local competitors of a business and what they do better online. Useful for tailoring a pitch.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"business_name": {Type: "string", Description: "The business to research."},
				"location":      locationProp,
				"industry":      industryProp,
			},
			Required: []string{"business_name", "location"},
		},
	}
}

func (t *competitorsTool) Execute(ctx context.Context, input json.RawMessage) (Result, error) {
	in, err := decodeInput[competitorsInput](input)
	if err != nil {
		return Result{}, err
	}
	if t.deps.Perplexity == nil {
		return notConfigured("Perplexity"), nil
	}

	subject := in.BusinessName
	if in.Industry != "" {
		subject += " (" + in.Industry + ")"
	}
	prompt := fmt.Sprintf(`Identify up to 5 direct local competitors of %s in %s.
Reply with only a JSON object: {"competitors": [{"name": string, "website": string, "rating": number or null, "strengths": [string]}], "market_summary": string}.`,
		subject, in.Location)

	text, err := askPerplexity(ctx, t.deps, prompt)
	if err != nil {
		return Result{}, err
	}
	report, err := ParseCompetitorReport(text)
	if err != nil {
		return Result{}, err
	}
	return Result{Data: report}, nil
}

// ParseCompetitorReport strictly parses a research_competitors response.
func ParseCompetitorReport(text string) (CompetitorReport, error) {
	var fields map[string]json.RawMessage
	if err := decodeObject(text, &fields); err != nil {
		return CompetitorReport{}, eris.Wrap(err, "tools: parse competitor report")
	}
	raw, ok := fields["competitors"]
	if !ok {
		return CompetitorReport{}, eris.New("tools: parse competitor report: missing competitors")
	}
	var report CompetitorReport
	if err := json.Unmarshal(raw, &report.Competitors); err != nil || report.Competitors == nil {
		return CompetitorReport{}, eris.New("tools: parse competitor report: competitors must be an array")
	}
	for i, c := range report.Competitors {
		if strings.TrimSpace(c.Name) == "" {
			return CompetitorReport{}, eris.Errorf("tools: parse competitor report: competitor %d has no name", i)
		}
	}
	if err := optionalString(fields, "market_summary", &report.MarketSummary); err != nil {
		return CompetitorReport{}, eris.Wrap(err, "tools: parse competitor report")
	}
	return report, nil
}

// verifyTool checks that a business exists and is operating.
type verifyTool struct{ deps Deps }

type verifyInput struct {
	BusinessName string `json:"business_name"`
	Address      string `json:"address"`
	Phone        string `json:"phone"`
	Website      string `json:"website"`
}

func (t *verifyTool) Spec() Spec {
	return Spec{
		Name:        VerifyBusiness,
		Description: "Check with a web search that a business exists, is still operating, and that its phone and website are current.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"business_name": {Type: "string", Description: "The business to verify."},
				"address":       {Type: "string", Description: "Known address."},
				"phone":         {Type: "string", Description: "Known phone number."},
				"website":       {Type: "string", Description: "Known website."},
			},
			Required: []string{"business_name"},
		},
	}
}

func (t *verifyTool) Execute(ctx context.Context, input json.RawMessage) (Result, error) {
	in, err := decodeInput[verifyInput](input)
	if err != nil {
		return Result{}, err
	}
	if t.deps.Perplexity == nil {
		return notConfigured("Perplexity"), nil
	}

	var known []string
	for _, kv := range [][2]string{{"address", in.Address}, {"phone", in.Phone}, {"website", in.Website}} {
		if kv[1] != "" {
			known = append(known, kv[0]+": "+kv[1])
		}
	}
	prompt := fmt.Sprintf(`Verify whether the business %q exists and is currently operating.
Known details: %s.
Reply with only a JSON object: {"exists": boolean, "operating_status": one of %q, "confidence": number 0-1, "verified_phone": string, "verified_website": string, "notes": string}.`,
		in.BusinessName, strings.Join(known, "; "), operatingStatuses)

	text, err := askPerplexity(ctx, t.deps, prompt)
	if err != nil {
		return Result{}, err
	}
	v, err := ParseVerification(text)
	if err != nil {
		return Result{}, err
	}
	return Result{Data: v}, nil
}

// ParseVerification strictly parses a verify_business response: exists must
// be a boolean, operating_status a known value, confidence within [0,1].
func ParseVerification(text string) (Verification, error) {
	var fields map[string]json.RawMessage
	if err := decodeObject(text, &fields); err != nil {
		return Verification{}, eris.Wrap(err, "tools: parse verification")
	}
	var v Verification
	raw, ok := fields["exists"]
	if !ok {
		return Verification{}, eris.New("tools: parse verification: missing exists")
	}
	if err := json.Unmarshal(raw, &v.Exists); err != nil {
		return Verification{}, eris.New("tools: parse verification: exists must be a boolean")
	}
	if err := json.Unmarshal(fields["operating_status"], &v.OperatingStatus); err != nil ||
		!slices.Contains(operatingStatuses, v.OperatingStatus) {
		return Verification{}, eris.Errorf("tools: parse verification: operating_status must be one of %v", operatingStatuses)
	}
	if err := json.Unmarshal(fields["confidence"], &v.Confidence); err != nil || v.Confidence < 0 || v.Confidence > 1 {
		return Verification{}, eris.New("tools: parse verification: confidence must be a number in [0,1]")
	}
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"verified_phone", &v.VerifiedPhone},
		{"verified_website", &v.VerifiedWebsite},
		{"notes", &v.Notes},
	} {
		if err := optionalString(fields, f.key, f.dst); err != nil {
			return Verification{}, eris.Wrap(err, "tools: parse verification")
		}
	}
	return v, nil
}

// optionalString decodes fields[key] into dst when present. Absent and null
// leave dst empty; any other non-string value is an error.
func optionalString(fields map[string]json.RawMessage, key string, dst *string) error {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return eris.Errorf("%s must be a string", key)
	}
	return nil
}

func decodeObject(text string, v any) error {
	raw, err := llmjson.Object(text)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), v)
}
