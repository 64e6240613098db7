package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-engine/internal/lead"
	"github.com/sells-group/lead-engine/internal/scrape"
)

const (
	staleCopyrightYears = 2
	thinContentWords    = 150
)

var (
	viewportRe  = regexp.MustCompile(`(?i)<meta[^>]+name\s*=\s*["']viewport["']`)
	copyrightRe = regexp.MustCompile(`(?i)(?:©|&copy;|&#169;|copyright)\s*(?:\d{4}\s*[-–]\s*)?((?:19|20)\d{2})`)
	formRe      = regexp.MustCompile(`(?is)<form\b.*?</form>`)
	contactHint = regexp.MustCompile(`(?i)type\s*=\s*["'](?:email|tel)["']|<textarea|contact|message`)
	bookingRe   = regexp.MustCompile(`(?i)\b(?:book (?:now|online|an appointment)|schedule (?:now|online|an appointment|service)|request an appointment|reserve (?:a table|now)|make a reservation|order online|order now|start (?:your|an) order)\b`)
	bookingHost = regexp.MustCompile(`(?i)(?:calendly\.com|opentable\.com|resy\.com|squareup\.com/appointments|vagaro\.com|housecallpro\.com|servicetitan\.com|toasttab\.com|doordash\.com|grubhub\.com|ubereats\.com)`)

	platformSignatures = []struct {
		name string
		re   *regexp.Regexp
	}{
		{"wix", regexp.MustCompile(`(?i)wix\.com|_wixcss|wixstatic`)},
		{"squarespace", regexp.MustCompile(`(?i)squarespace`)},
		{"shopify", regexp.MustCompile(`(?i)cdn\.shopify\.com|shopify\.theme`)},
		{"wordpress", regexp.MustCompile(`(?i)wp-content|wp-includes|content="wordpress`)},
		{"godaddy", regexp.MustCompile(`(?i)godaddy|img1\.wsimg\.com`)},
		{"weebly", regexp.MustCompile(`(?i)weebly`)},
		{"webflow", regexp.MustCompile(`(?i)webflow`)},
	}
)

// WebsiteAnalysis is the outcome of analyze_website.
type WebsiteAnalysis struct {
	URL            string   `json:"url"`
	Reachable      bool     `json:"reachable"`
	Blocked        bool     `json:"blocked"`
	BlockType      string   `json:"block_type,omitempty"`
	HTTPS          bool     `json:"https"`
	HTMLAvailable  bool     `json:"html_available"`
	MobileViewport bool     `json:"mobile_viewport"`
	Title          string   `json:"title,omitempty"`
	CopyrightYear  int      `json:"copyright_year,omitempty"`
	ContactForm    bool     `json:"contact_form"`
	OnlineBooking  bool     `json:"online_booking"`
	Platform       string   `json:"platform,omitempty"`
	WordCount      int      `json:"word_count"`
	Issues         []string `json:"issues"`
	Source         string   `json:"source,omitempty"`
}

// websiteTool fetches a site and reports marketing-relevant weaknesses.
type websiteTool struct {
	deps Deps
	now  func() time.Time
}

type websiteInput struct {
	URL string `json:"url"`
}

func (t *websiteTool) Spec() Spec {
	return Spec{
		Name: AnalyzeWebsite,
		Description: "Fetch a business website and report issues a marketing agency could fix: " +
			"no HTTPS, no mobile viewport, stale copyright, no contact form, no online booking, thin content, site builder used.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"url": {Type: "string", Description: "The website URL to analyze."},
			},
			Required: []string{"url"},
		},
	}
}

func (t *websiteTool) Execute(ctx context.Context, input json.RawMessage) (Result, error) {
	in, err := decodeInput[websiteInput](input)
	if err != nil {
		return Result{}, err
	}
	site := lead.NormalizeWebsite(in.URL)
	if site == nil {
		return Result{}, eris.Errorf("tools: %q is not a usable business website", in.URL)
	}
	if t.deps.Scrape == nil {
		return notConfigured("website fetching"), nil
	}

	now := time.Now
	if t.now != nil {
		now = t.now
	}

	r, err := t.deps.Scrape.Scrape(ctx, *site)
	if err != nil {
		var be *scrape.BlockedError
		if errors.As(err, &be) {
			a := WebsiteAnalysis{
				URL:       *site,
				Blocked:   true,
				BlockType: string(be.Type),
				HTTPS:     strings.HasPrefix(*site, "https://"),
				Issues:    []string{"site blocks automated visitors (" + string(be.Type) + "); may also deter customers"},
			}
			return Result{Data: a}, nil
		}
		return Result{}, err
	}

	a := AnalyzePage(r.Page, now())
	a.Source = r.Source
	return Result{Data: a}, nil
}

// AnalyzePage derives a WebsiteAnalysis from a fetched page. Markup-based
// checks are skipped when the page has no raw HTML.
func AnalyzePage(p scrape.Page, now time.Time) WebsiteAnalysis {
	a := WebsiteAnalysis{
		URL:           p.URL,
		Reachable:     true,
		HTMLAvailable: strings.TrimSpace(p.HTML) != "",
		Title:         p.Title,
		WordCount:     len(strings.Fields(p.Markdown)),
		Issues:        []string{},
	}
	if u, err := url.Parse(p.URL); err == nil {
		a.HTTPS = u.Scheme == "https"
	}

	body := p.Markdown
	if a.HTMLAvailable {
		body = p.HTML
		if a.Title == "" {
			a.Title = scrape.ExtractTitle(p.HTML)
		}
		a.MobileViewport = viewportRe.MatchString(p.HTML)
		for _, f := range formRe.FindAllString(p.HTML, -1) {
			if contactHint.MatchString(f) {
				a.ContactForm = true
				break
			}
		}
		for _, sig := range platformSignatures {
			if sig.re.MatchString(p.HTML) {
				a.Platform = sig.name
				break
			}
		}
	}

	for _, m := range copyrightRe.FindAllStringSubmatch(body, -1) {
		if y, err := strconv.Atoi(m[1]); err == nil && y > a.CopyrightYear && y <= now.Year()+1 {
			a.CopyrightYear = y
		}
	}
	a.OnlineBooking = bookingRe.MatchString(body) || bookingHost.MatchString(body)

	if !a.HTTPS {
		a.Issues = append(a.Issues, "no HTTPS")
	}
	if a.HTMLAvailable && !a.MobileViewport {
		a.Issues = append(a.Issues, "no mobile viewport; likely not mobile friendly")
	}
	if strings.TrimSpace(a.Title) == "" {
		a.Issues = append(a.Issues, "missing page title")
	}
	if a.CopyrightYear > 0 && now.Year()-a.CopyrightYear >= staleCopyrightYears {
		a.Issues = append(a.Issues, fmt.Sprintf("copyright year %d looks stale", a.CopyrightYear))
	}
	if a.HTMLAvailable && !a.ContactForm {
		a.Issues = append(a.Issues, "no contact form")
	}
	if !a.OnlineBooking {
		a.Issues = append(a.Issues, "no online booking or ordering")
	}
	if a.WordCount < thinContentWords {
		a.Issues = append(a.Issues, fmt.Sprintf("thin content (%d words)", a.WordCount))
	}
	if a.Platform != "" {
		a.Issues = append(a.Issues, "runs on "+a.Platform)
	}
	return a
}
