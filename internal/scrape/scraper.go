// Package scrape fetches business websites through a chain of scrapers:
// a free local HTTP fetch first, then Jina Reader, then Firecrawl.
package scrape

import (
	"context"
	"fmt"
)

// Page is one fetched web page. HTML is the raw document when the scraper
// had access to it; Markdown is always readable text.
type Page struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Markdown   string `json:"markdown"`
	HTML       string `json:"html,omitempty"`
	StatusCode int    `json:"status_code"`
}

// Result holds a scraped page with its source.
type Result struct {
	Page   Page   `json:"page"`
	Source string `json:"source"` // e.g. "local_http", "jina", "firecrawl"
}

// Scraper fetches a single URL and returns its content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}

// BlockedError reports that a site served an anti-bot page instead of
// content.
type BlockedError struct {
	URL  string
	Type BlockType
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked (%s): %s", e.Type, e.URL)
}
