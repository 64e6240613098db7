package search

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/lead-engine/internal/lead"
)

var (
	noWebsiteRe   = regexp.MustCompile(`(?i)\b(?:with\s+no|without(?:\s+a)?|no|lacking(?:\s+a)?|missing(?:\s+a)?)\s+websites?\b`)
	withWebsiteRe = regexp.MustCompile(`(?i)\b(?:with|having)(?:\s+a)?\s+websites?\b`)
	minRatingRe   = regexp.MustCompile(`(?i)\b(?:rated|rating|ratings?\s+of)\s*(?:above|over|at\s+least|of\s+at\s+least|>=?)?\s*(\d(?:\.\d+)?)\s*(?:\+|stars?|or\s+(?:more|higher|better))?`)
	prepRe        = regexp.MustCompile(`(?i)\s+(in|near|around)\s+`)
	leadInRe      = regexp.MustCompile(`(?i)^(?:please\s+)?(?:find(?:\s+me)?|search\s+for|show\s+me|get\s+me|look\s+for|list)\s+`)
)

// compoundIn lists words that form a business term with a following "in"
// ("walk in clinics", "drive in theaters"), so that "in" is not a location
// preposition.
var compoundIn = map[string]bool{
	"walk": true, "drive": true, "drop": true, "dine": true,
	"check": true, "plug": true, "sit": true, "move": true,
}

// ParseRequest turns a one-sentence request such as "plumbers with no
// website in Santa Fe" into a structured Request. Recognized phrases are
// removed from the query; whatever follows the first "in", "near" or
// "around" becomes the location, except an "in" that completes a compound
// term such as "walk in".
func ParseRequest(text string) Request {
	s := strings.Join(strings.Fields(text), " ")
	req := Request{Website: lead.WebsiteAny}

	if loc := noWebsiteRe.FindStringIndex(s); loc != nil {
		req.Website = lead.WebsiteAbsent
		s = s[:loc[0]] + " " + s[loc[1]:]
	} else if loc := withWebsiteRe.FindStringIndex(s); loc != nil {
		req.Website = lead.WebsiteRequired
		s = s[:loc[0]] + " " + s[loc[1]:]
	}

	if m := minRatingRe.FindStringSubmatchIndex(s); m != nil {
		if r, err := strconv.ParseFloat(s[m[2]:m[3]], 64); err == nil && r >= 0 && r <= 5 {
			req.MinRating = &r
			s = s[:m[0]] + " " + s[m[1]:]
		}
	}

	s = strings.Join(strings.Fields(s), " ")
	s = leadInRe.ReplaceAllString(s, "")

	req.Query = s
	if at, next, ok := locationSplit(s); ok {
		req.Query = strings.TrimSpace(s[:at])
		req.Location = strings.Trim(strings.TrimSpace(s[next:]), ".,;")
	}
	req.Query = strings.Trim(strings.TrimSpace(req.Query), ".,;")
	return req
}

// locationSplit finds the preposition that introduces the location and
// returns where the query ends and the location starts.
func locationSplit(s string) (at, next int, ok bool) {
	for _, m := range prepRe.FindAllStringSubmatchIndex(s, -1) {
		if m[0] == 0 || m[1] == len(s) {
			continue
		}
		if strings.EqualFold(s[m[2]:m[3]], "in") {
			words := strings.Fields(s[:m[0]])
			if last := strings.ToLower(words[len(words)-1]); compoundIn[last] {
				continue
			}
		}
		return m[0], m[1], true
	}
	return 0, 0, false
}
