package scorer

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-engine/internal/llmjson"
)

// MaxPainPoints is the most pain points kept from a model response.
const MaxPainPoints = 5

// Assessment is a parsed model scoring response.
type Assessment struct {
	OpportunityScore int      `json:"opportunityScore"`
	PainPoints       []string `json:"painPoints"`
}

// ParseAssessment parses a model response strictly. The JSON object may be
// wrapped in a code fence; opportunityScore must be an integer in [0,100]
// and painPoints an array of strings. Blank pain points are dropped and at
// most MaxPainPoints are kept.
func ParseAssessment(text string) (Assessment, error) {
	raw, err := llmjson.Object(text)
	if err != nil {
		return Assessment{}, eris.Wrap(err, "scorer: parse assessment")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Assessment{}, eris.Wrap(err, "scorer: parse assessment")
	}

	scoreRaw, ok := fields["opportunityScore"]
	if !ok {
		return Assessment{}, eris.New("scorer: parse assessment: missing opportunityScore")
	}
	var score float64
	if err := strictNumber(scoreRaw, &score); err != nil {
		return Assessment{}, eris.Wrap(err, "scorer: parse assessment: opportunityScore")
	}
	if score != math.Trunc(score) || score < 0 || score > 100 {
		return Assessment{}, eris.Errorf("scorer: parse assessment: opportunityScore %v not an integer in [0,100]", score)
	}

	painRaw, ok := fields["painPoints"]
	if !ok {
		return Assessment{}, eris.New("scorer: parse assessment: missing painPoints")
	}
	var pains []string
	if err := json.Unmarshal(painRaw, &pains); err != nil || pains == nil {
		return Assessment{}, eris.New("scorer: parse assessment: painPoints must be an array of strings")
	}

	kept := make([]string, 0, min(len(pains), MaxPainPoints))
	for _, p := range pains {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kept = append(kept, p)
		if len(kept) == MaxPainPoints {
			break
		}
	}
	return Assessment{OpportunityScore: int(score), PainPoints: kept}, nil
}

// strictNumber decodes a JSON number, rejecting quoted numbers and null.
func strictNumber(raw json.RawMessage, v *float64) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' || bytes.Equal(raw, []byte("null")) {
		return eris.New("not a number")
	}
	return json.Unmarshal(raw, v)
}
