package agent

import (
	"fmt"
	"strings"

	"github.com/sells-group/lead-engine/internal/cost"
	"github.com/sells-group/lead-engine/internal/lead"
	"github.com/sells-group/lead-engine/internal/tools"
)

// run is the mutable state of one orchestration. It is only touched by the
// loop goroutine; tool results arrive through ExecuteAll's ordered slots.
type run struct {
	id      string
	tracker *cost.Tracker

	leads      []lead.Lead
	steps      []ExecutionStep
	toolsUsed  []string
	used       map[string]bool
	offered    map[tools.ToolName]bool
	warnings   []string
	iterations int
	exhausted  bool
	degraded   bool
}

// record appends the step for one finished call and folds its output into
// the accumulated leads. Only tools offered to the model count as used;
// calls to unknown or disabled names are kept as steps and warnings.
func (r *run) record(iter int, call tools.Call, res tools.Result, rationale string) {
	r.steps = append(r.steps, ExecutionStep{
		Step:      len(r.steps) + 1,
		Iteration: iter,
		Tool:      string(call.Name),
		Input:     call.Input,
		Output:    res,
		Rationale: rationale,
	})
	if name := string(call.Name); r.offered[call.Name] && !r.used[name] {
		r.used[name] = true
		r.toolsUsed = append(r.toolsUsed, name)
	}
	if res.Failed() {
		r.warnings = append(r.warnings, fmt.Sprintf("%s failed: %s", call.Name, res.Error))
		return
	}

	for _, l := range res.Leads {
		r.leads = append(r.leads, l.Clone())
	}
	for _, s := range res.Scores {
		r.applyScore(s)
	}
	for _, c := range res.Contacts {
		r.applyContact(c)
	}
}

func (r *run) applyScore(s tools.ScoreUpdate) {
	key := lead.Key(s.Name)
	for i := range r.leads {
		if lead.Key(r.leads[i].Name) != key {
			continue
		}
		r.leads[i].OpportunityScore = s.OpportunityScore
		r.leads[i].PainPoints = append([]string{}, s.PainPoints...)
		r.leads[i].ScoringNote = s.ScoringNote
	}
}

// applyContact fills the email of leads whose website matches. An email
// already on a lead is kept.
func (r *run) applyContact(c tools.ContactUpdate) {
	site := lead.NormalizeWebsite(c.Website)
	if site == nil || c.Email == "" {
		return
	}
	for i := range r.leads {
		w := r.leads[i].Website
		if w == nil || !sameSite(*w, *site) || lead.Deref(r.leads[i].Email) != "" {
			continue
		}
		r.leads[i].Email = lead.StringPtr(c.Email)
		r.leads[i].ConfidenceScore = lead.Confidence(r.leads[i])
	}
}

func sameSite(a, b string) bool {
	trim := func(s string) string {
		s = strings.ToLower(strings.TrimSuffix(s, "/"))
		s = strings.TrimPrefix(s, "https://")
		s = strings.TrimPrefix(s, "http://")
		return strings.TrimPrefix(s, "www.")
	}
	return trim(a) == trim(b)
}
