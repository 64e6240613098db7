package tools

import (
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/lead"
	"github.com/sells-group/lead-engine/internal/resilience"
	"github.com/sells-group/lead-engine/pkg/jina"
)

var (
	mailtoRe = regexp.MustCompile(`(?i)mailto:([a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,})`)
	emailRe  = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)

	assetSuffixes   = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico", ".css", ".js"}
	junkEmailDomain = []string{"example.com", "example.org", "domain.com", "email.com", "sentry.io", "sentry.wixpress.com", "wixpress.com", "yourdomain.com"}
	junkLocalParts  = []string{"email", "name", "user", "username", "your", "yourname", "you", "noreply", "no-reply", "firstname.lastname"}

	contactPaths = []string{"/contact", "/contact-us", "/about"}
)

const maxEmails = 5

// emailTool finds a contact email for a business website.
type emailTool struct{ deps Deps }

type emailInput struct {
	Website      string `json:"website"`
	BusinessName string `json:"business_name"`
}

func (t *emailTool) Spec() Spec {
	return Spec{
		Name: EnrichContactEmail,
		Description: "Find a contact email for a business from its website (home and contact pages), " +
			"falling back to a web search restricted to the site's domain.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"website":       {Type: "string", Description: "The business website URL."},
				"business_name": {Type: "string", Description: "Business name, used for the web search fallback."},
			},
			Required: []string{"website"},
		},
	}
}

func (t *emailTool) Execute(ctx context.Context, input json.RawMessage) (Result, error) {
	in, err := decodeInput[emailInput](input)
	if err != nil {
		return Result{}, err
	}
	site := lead.NormalizeWebsite(in.Website)
	if site == nil {
		return Result{}, eris.Errorf("tools: %q is not a usable business website", in.Website)
	}
	if t.deps.Scrape == nil && t.deps.Jina == nil {
		return notConfigured("website fetching"), nil
	}
	host := hostOf(*site)

	var (
		emails []string
		source string
		pages  int
	)
	if t.deps.Scrape != nil {
		urls := []string{*site}
		for _, p := range contactPaths {
			urls = append(urls, strings.TrimRight(*site, "/")+p)
		}
		// The homepage alone usually suffices; contact pages are fetched
		// only when it has nothing.
		if r, err := t.deps.Scrape.Scrape(ctx, urls[0]); err == nil {
			pages++
			emails = ExtractEmails(r.Page.HTML+"\n"+r.Page.Markdown, host)
		}
		if len(emails) == 0 {
			for _, r := range t.deps.Scrape.ScrapeAll(ctx, urls[1:], len(urls)-1) {
				if r == nil {
					continue
				}
				pages++
				emails = appendUnique(emails, ExtractEmails(r.Page.HTML+"\n"+r.Page.Markdown, host)...)
			}
		}
		if len(emails) > 0 {
			source = "website"
		}
	}

	if len(emails) == 0 && t.deps.Jina != nil {
		found, err := t.searchEmails(ctx, host, in.BusinessName)
		if err != nil {
			zap.L().Debug("tools: email web search failed", zap.String("host", host), zap.Error(err))
		}
		if len(found) > 0 {
			emails = found
			source = "web_search"
		}
	}

	if len(emails) > maxEmails {
		emails = emails[:maxEmails]
	}
	res := Result{Data: map[string]any{
		"website":       *site,
		"emails":        emails,
		"pages_checked": pages,
	}}
	if len(emails) == 0 {
		res.Message = "no contact email found"
		return res, nil
	}
	res.Contacts = []ContactUpdate{{Website: *site, Email: emails[0], Source: source}}
	return res, nil
}

func (t *emailTool) searchEmails(ctx context.Context, host, name string) ([]string, error) {
	q := "contact email"
	if name != "" {
		q = `"` + name + `" ` + q
	}
	resp, err := resilience.Call(ctx, t.deps.Guard, "jina", "search",
		func(ctx context.Context) (*jina.SearchResponse, error) {
			return t.deps.Jina.Search(ctx, q, jina.WithSiteFilter(host))
		})
	if err != nil {
		return nil, err
	}
	var out []string
	for _, r := range resp.Data {
		out = appendUnique(out, ExtractEmails(r.Content+"\n"+r.Description, host)...)
	}
	return out, nil
}

// ExtractEmails returns plausible contact emails in text, mailto links
// first, then addresses on host, then the rest. Asset filenames
// ("logo@2x.png"), placeholder and tracking addresses are dropped.
func ExtractEmails(text, host string) []string {
	var mailto, plain []string
	for _, m := range mailtoRe.FindAllStringSubmatch(text, -1) {
		mailto = appendUnique(mailto, strings.ToLower(m[1]))
	}
	for _, m := range emailRe.FindAllString(text, -1) {
		plain = appendUnique(plain, strings.ToLower(m))
	}

	var candidates []string
	candidates = appendUnique(candidates, mailto...)
	candidates = appendUnique(candidates, plain...)

	var onHost, other []string
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	for _, e := range candidates {
		if !plausibleEmail(e) {
			continue
		}
		domain := e[strings.LastIndex(e, "@")+1:]
		if host != "" && (domain == host || strings.HasSuffix(domain, "."+host)) {
			onHost = append(onHost, e)
		} else {
			other = append(other, e)
		}
	}
	if len(mailto) > 0 {
		// Preserve mailto priority within each group.
		sortByMailto(onHost, mailto)
		sortByMailto(other, mailto)
	}
	return append(onHost, other...)
}

func plausibleEmail(e string) bool {
	at := strings.LastIndex(e, "@")
	if at <= 0 {
		return false
	}
	local, domain := e[:at], e[at+1:]
	for _, s := range assetSuffixes {
		if strings.HasSuffix(domain, s) {
			return false
		}
	}
	if slices.Contains(junkEmailDomain, domain) || slices.Contains(junkLocalParts, local) {
		return false
	}
	return !strings.Contains(local, "..")
}

func sortByMailto(list, mailto []string) {
	slices.SortStableFunc(list, func(a, b string) int {
		ai, bi := slices.Contains(mailto, a), slices.Contains(mailto, b)
		switch {
		case ai && !bi:
			return -1
		case bi && !ai:
			return 1
		}
		return 0
	})
}

func appendUnique(list []string, vals ...string) []string {
	for _, v := range vals {
		if !slices.Contains(list, v) {
			list = append(list, v)
		}
	}
	return list
}

func hostOf(site string) string {
	u, err := url.Parse(site)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
