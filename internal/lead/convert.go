package lead

import (
	"net/url"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Conversion errors. A record failing either check never becomes a Lead.
var (
	ErrMissingName    = eris.New("lead: record has no name")
	ErrMissingAddress = eris.New("lead: record has no address")
)

// directoryHosts are listing and social sites that a backend sometimes
// reports as a business's website. A lead pointing only at one of these has
// no website of its own.
var directoryHosts = []string{
	"facebook.com",
	"instagram.com",
	"linkedin.com",
	"twitter.com",
	"x.com",
	"tiktok.com",
	"youtube.com",
	"yelp.com",
	"yellowpages.com",
	"nextdoor.com",
	"bbb.org",
	"angi.com",
	"homeadvisor.com",
	"thumbtack.com",
	"google.com",
	"maps.app.goo.gl",
}

// genericTypes are provider place types too broad to serve as an industry.
var genericTypes = map[string]bool{
	"point_of_interest": true,
	"establishment":     true,
	"store":             true,
	"food":              true,
	"health":            true,
	"political":         true,
	"premise":           true,
	"service":           true,
}

// Convert maps one raw backend record into a Lead. industry overrides the
// label derived from the record's types; source tags provenance and falls
// back to the record's provider.
func Convert(raw RawBusinessRecord, industry, source string) (Lead, error) {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return Lead{}, ErrMissingName
	}
	address := strings.TrimSpace(raw.FormattedAddress)
	if address == "" {
		return Lead{}, ErrMissingAddress
	}

	city, state, postal := fromComponents(raw.Components)
	if city == "" || state == "" || postal == "" {
		pc, ps, pz := parseAddress(address)
		city = firstNonEmpty(city, pc)
		state = firstNonEmpty(state, ps)
		postal = firstNonEmpty(postal, pz)
	}

	if source == "" {
		source = raw.Provider
	}

	l := Lead{
		Name:             name,
		Industry:         industryLabel(industry, raw.Types),
		Phone:            StringPtr(preferredPhone(raw)),
		Website:          NormalizeWebsite(raw.Website),
		Address:          address,
		City:             city,
		State:            state,
		PostalCode:       StringPtr(postal),
		OpportunityScore: DefaultOpportunityScore,
		PainPoints:       []string{},
		Source:           source,
		ProviderID:       strings.TrimSpace(raw.ID),
	}
	if raw.Rating != nil {
		r := *raw.Rating
		l.Rating = &r
	}
	if raw.ReviewCount != nil {
		c := *raw.ReviewCount
		l.ReviewCount = &c
	}
	l.ConfidenceScore = Confidence(l)
	return l, nil
}

// ConvertAll converts every record, silently dropping malformed ones and
// those with neither phone nor website.
func ConvertAll(raws []RawBusinessRecord, industry, source string) []Lead {
	out := make([]Lead, 0, len(raws))
	for _, raw := range raws {
		l, err := Convert(raw, industry, source)
		if err != nil {
			zap.L().Debug("lead: dropping record",
				zap.String("id", raw.ID),
				zap.String("name", raw.Name),
				zap.Error(err),
			)
			continue
		}
		if !l.HasContact() {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Confidence scores field completeness from 0 to 100.
func Confidence(l Lead) int {
	score := 40 // name and address are always present
	if nonEmpty(l.Phone) {
		score += 15
	}
	if nonEmpty(l.Website) {
		score += 15
	}
	if nonEmpty(l.Email) {
		score += 5
	}
	if l.City != "" {
		score += 5
	}
	if l.State != "" {
		score += 5
	}
	if nonEmpty(l.PostalCode) {
		score += 5
	}
	if l.Rating != nil {
		score += 5
	}
	if l.ReviewCount != nil {
		score += 5
	}
	return min(score, 100)
}

// NormalizeWebsite returns a canonical https URL for raw, or nil when raw is
// empty, unparseable, or a directory/social listing.
func NormalizeWebsite(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" || !strings.Contains(u.Hostname(), ".") {
		return nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	if isDirectoryHost(u.Hostname()) {
		return nil
	}
	u.Fragment = ""
	s := strings.TrimSuffix(u.String(), "/")
	return &s
}

func isDirectoryHost(host string) bool {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	for _, d := range directoryHosts {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func preferredPhone(raw RawBusinessRecord) string {
	return firstNonEmpty(
		strings.TrimSpace(raw.NationalPhone),
		strings.TrimSpace(raw.InternationalPhone),
		strings.TrimSpace(raw.Phone),
	)
}

func industryLabel(hint string, types []string) string {
	if hint = strings.TrimSpace(hint); hint != "" {
		return hint
	}
	for _, t := range types {
		if t == "" || genericTypes[t] {
			continue
		}
		return HumanizeType(t)
	}
	return "Business"
}

// HumanizeType turns a provider type such as "home_goods_store" into
// "Home Goods Store".
func HumanizeType(t string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(t, "_", " "))
}

func fromComponents(comps []AddressComponent) (city, state, postal string) {
	for _, c := range comps {
		switch {
		case city == "" && (slices.Contains(c.Types, "locality") || slices.Contains(c.Types, "postal_town")):
			city = c.LongText
		case state == "" && slices.Contains(c.Types, "administrative_area_level_1"):
			state = firstNonEmpty(c.ShortText, c.LongText)
		case postal == "" && slices.Contains(c.Types, "postal_code"):
			postal = c.LongText
		}
	}
	return city, state, postal
}

// parseAddress extracts city, state and ZIP from a US-style formatted
// address ("street, city, ST 12345, USA"). Any part it cannot find is "".
func parseAddress(addr string) (city, state, zip string) {
	var parts []string
	for _, p := range strings.Split(addr, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return "", "", ""
	}

	for i := len(parts) - 1; i >= 0; i-- {
		if s, z := parseStateZip(parts[i]); s != "" {
			if i > 0 {
				city = parts[i-1]
			}
			return city, s, z
		}
	}

	// No state segment: assume "street, city, country".
	if len(parts) >= 3 {
		city = parts[len(parts)-2]
	}
	return city, "", ""
}

// parseStateZip recognizes "ST" or "ST 12345[-6789]".
func parseStateZip(s string) (state, zip string) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 2 {
		return "", ""
	}
	candidate := fields[0]
	if len(candidate) != 2 || !isUpperAlpha(candidate) {
		return "", ""
	}
	if len(fields) == 2 {
		if !isZipCode(fields[1]) {
			return "", ""
		}
		zip = fields[1]
	}
	return candidate, zip
}

func isUpperAlpha(s string) bool {
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

func isZipCode(s string) bool {
	if len(s) != 5 && len(s) != 10 {
		return false
	}
	for i, c := range s {
		if i == 5 && len(s) == 10 {
			if c != '-' {
				return false
			}
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
