package scrape

import (
	"context"

	"github.com/sells-group/lead-engine/internal/cost"
	"github.com/sells-group/lead-engine/pkg/firecrawl"
)

const firecrawlProvider = "firecrawl"

// FirecrawlAdapter wraps a Firecrawl client as a Scraper for single-page scrapes.
type FirecrawlAdapter struct {
	client firecrawl.Client
}

// NewFirecrawlAdapter creates a FirecrawlAdapter from a Firecrawl client.
func NewFirecrawlAdapter(client firecrawl.Client) *FirecrawlAdapter {
	return &FirecrawlAdapter{client: client}
}

// Name implements Scraper.
func (f *FirecrawlAdapter) Name() string { return firecrawlProvider }

// Supports returns true: Firecrawl can attempt any URL as a last resort.
func (f *FirecrawlAdapter) Supports(_ string) bool { return true }

// Scrape fetches a single URL via Firecrawl, requesting both markdown and
// raw HTML so website analysis can inspect markup.
func (f *FirecrawlAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:     targetURL,
		Formats: []string{"markdown", "html"},
	})
	cost.FromContext(ctx).AddFirecrawlScrape()
	if err != nil {
		return nil, err
	}
	pageURL := resp.Data.Metadata.SourceURL
	if pageURL == "" {
		pageURL = targetURL
	}
	return &Result{
		Page: Page{
			URL:        pageURL,
			Title:      resp.Data.Metadata.Title,
			Markdown:   resp.Data.Markdown,
			HTML:       resp.Data.HTML,
			StatusCode: resp.Data.Metadata.StatusCode,
		},
		Source: firecrawlProvider,
	}, nil
}
