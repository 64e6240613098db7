package lead

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// Key returns the identity key for a business name: case-folded, trimmed and
// with inner whitespace collapsed to single spaces.
func Key(name string) string {
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}

// Dedupe keeps the first lead for each name key, preserving order.
// Dedupe(Dedupe(x)) equals Dedupe(x).
func Dedupe(leads []Lead) []Lead {
	seen := make(map[string]struct{}, len(leads))
	out := make([]Lead, 0, len(leads))
	for _, l := range leads {
		k := Key(l.Name)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, l)
	}
	return out
}

// Rank returns a copy sorted by opportunity score, then rating, then review
// count, all descending. Missing rating or review count compare as zero.
// Ties keep their input order.
func Rank(leads []Lead) []Lead {
	out := slices.Clone(leads)
	slices.SortStableFunc(out, func(a, b Lead) int {
		if c := cmp.Compare(b.OpportunityScore, a.OpportunityScore); c != 0 {
			return c
		}
		if c := cmp.Compare(ratingOf(b), ratingOf(a)); c != 0 {
			return c
		}
		return cmp.Compare(reviewsOf(b), reviewsOf(a))
	})
	return out
}

func ratingOf(l Lead) float64 {
	if l.Rating == nil {
		return 0
	}
	return *l.Rating
}

func reviewsOf(l Lead) int {
	if l.ReviewCount == nil {
		return 0
	}
	return *l.ReviewCount
}
