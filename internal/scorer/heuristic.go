package scorer

import (
	"strings"

	"github.com/sells-group/lead-engine/internal/lead"
)

// Heuristic weights. The maximum sum is exactly 100.
const (
	heuristicBase        = 40
	weightNoWebsite      = 20
	weightLowRating      = 15
	weightUnknownRating  = 5
	weightFewReviews     = 15
	weightUnknownReviews = 5
	weightNoPhone        = 10

	lowRatingThreshold = 4.0
	fewReviewThreshold = 20
)

// Heuristic scores l deterministically from its contact and reputation
// signals. It never fails. PainPoints is cleared and ScoringNote lists the
// signals that contributed.
func Heuristic(l lead.Lead) lead.Lead {
	out := l.Clone()
	score := heuristicBase
	var basis []string

	if !l.HasWebsite() {
		score += weightNoWebsite
		basis = append(basis, "no website")
	}
	switch {
	case l.Rating == nil:
		score += weightUnknownRating
		basis = append(basis, "unknown rating")
	case *l.Rating < lowRatingThreshold:
		score += weightLowRating
		basis = append(basis, "rating below 4.0")
	}
	switch {
	case l.ReviewCount == nil:
		score += weightUnknownReviews
		basis = append(basis, "unknown review count")
	case *l.ReviewCount < fewReviewThreshold:
		score += weightFewReviews
		basis = append(basis, "fewer than 20 reviews")
	}
	if lead.Deref(l.Phone) == "" {
		score += weightNoPhone
		basis = append(basis, "no phone")
	}

	out.OpportunityScore = clamp(score)
	out.PainPoints = []string{}
	if len(basis) == 0 {
		out.ScoringNote = "heuristic: baseline only"
	} else {
		out.ScoringNote = "heuristic: " + strings.Join(basis, ", ")
	}
	return out
}

func clamp(n int) int {
	return max(0, min(100, n))
}
