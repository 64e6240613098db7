// Package lead defines the canonical business record and the pure functions
// that build, filter, deduplicate and rank it.
package lead

// DefaultOpportunityScore is the midpoint score a Lead carries until scored.
const DefaultOpportunityScore = 50

// Lead is the canonical record of one discovered business. Optional fields
// are nil when unknown and serialize as JSON null.
type Lead struct {
	Name             string   `json:"name"`
	Industry         string   `json:"industry"`
	Phone            *string  `json:"phone"`
	Email            *string  `json:"email"`
	Website          *string  `json:"website"`
	Address          string   `json:"address"`
	City             string   `json:"city"`
	State            string   `json:"state"`
	PostalCode       *string  `json:"postal_code"`
	Rating           *float64 `json:"rating"`
	ReviewCount      *int     `json:"review_count"`
	OpportunityScore int      `json:"opportunity_score"`
	PainPoints       []string `json:"pain_points"`
	ScoringNote      string   `json:"scoring_note,omitempty"`
	ConfidenceScore  int      `json:"confidence_score"`
	Source           string   `json:"source"`
	ProviderID       string   `json:"provider_id,omitempty"`
}

// HasContact reports whether the lead carries a phone or a website.
func (l Lead) HasContact() bool {
	return nonEmpty(l.Phone) || nonEmpty(l.Website)
}

// HasWebsite reports whether the lead has a usable website.
func (l Lead) HasWebsite() bool {
	return nonEmpty(l.Website)
}

// Clone returns a copy that shares no pointers or slices with l.
func (l Lead) Clone() Lead {
	out := l
	out.Phone = cloneString(l.Phone)
	out.Email = cloneString(l.Email)
	out.Website = cloneString(l.Website)
	out.PostalCode = cloneString(l.PostalCode)
	if l.Rating != nil {
		r := *l.Rating
		out.Rating = &r
	}
	if l.ReviewCount != nil {
		c := *l.ReviewCount
		out.ReviewCount = &c
	}
	out.PainPoints = append([]string{}, l.PainPoints...)
	return out
}

// RawBusinessRecord is one result as returned by a search backend, before
// conversion. Provider records which backend produced it.
type RawBusinessRecord struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	FormattedAddress   string             `json:"formatted_address"`
	Components         []AddressComponent `json:"components,omitempty"`
	NationalPhone      string             `json:"national_phone,omitempty"`
	InternationalPhone string             `json:"international_phone,omitempty"`
	Phone              string             `json:"phone,omitempty"`
	Rating             *float64           `json:"rating,omitempty"`
	ReviewCount        *int               `json:"review_count,omitempty"`
	Website            string             `json:"website,omitempty"`
	Types              []string           `json:"types,omitempty"`
	BusinessStatus     string             `json:"business_status,omitempty"`
	Provider           string             `json:"provider"`
}

// AddressComponent is one structured address part (locality, postal_code, ...).
type AddressComponent struct {
	LongText  string   `json:"long_text"`
	ShortText string   `json:"short_text"`
	Types     []string `json:"types"`
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
