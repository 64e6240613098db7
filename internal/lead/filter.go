package lead

import (
	"strings"

	"github.com/rotisserie/eris"
)

// WebsiteFilter restricts results by website presence.
type WebsiteFilter string

// Website filter values.
const (
	WebsiteAny      WebsiteFilter = "any"
	WebsiteRequired WebsiteFilter = "required"
	WebsiteAbsent   WebsiteFilter = "absent"
)

// ParseWebsiteFilter accepts "", "any", "required" or "absent".
func ParseWebsiteFilter(s string) (WebsiteFilter, error) {
	switch WebsiteFilter(strings.ToLower(strings.TrimSpace(s))) {
	case "", WebsiteAny:
		return WebsiteAny, nil
	case WebsiteRequired:
		return WebsiteRequired, nil
	case WebsiteAbsent:
		return WebsiteAbsent, nil
	}
	return "", eris.Errorf("lead: unknown website filter %q", s)
}

// Filter holds caller-supplied acceptance criteria.
type Filter struct {
	MinRating *float64
	Website   WebsiteFilter
}

// Match reports whether l passes the rating and website criteria. A lead
// with no rating passes any rating threshold.
func (f Filter) Match(l Lead) bool {
	if f.MinRating != nil && l.Rating != nil && *l.Rating < *f.MinRating {
		return false
	}
	switch f.Website {
	case WebsiteRequired:
		return l.HasWebsite()
	case WebsiteAbsent:
		return !l.HasWebsite()
	}
	return true
}

// Apply returns the leads matching f that also carry a phone or website.
// Order is preserved.
func (f Filter) Apply(leads []Lead) []Lead {
	out := make([]Lead, 0, len(leads))
	for _, l := range leads {
		if f.Match(l) && l.HasContact() {
			out = append(out, l)
		}
	}
	return out
}
