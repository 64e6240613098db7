package scrape

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/store"
)

// mockScraper implements Scraper for testing.
type mockScraper struct {
	name     string
	supports bool
	result   *Result
	err      error
	calls    atomic.Int32
}

func (m *mockScraper) Name() string           { return m.name }
func (m *mockScraper) Supports(_ string) bool { return m.supports }
func (m *mockScraper) Scrape(_ context.Context, _ string) (*Result, error) {
	m.calls.Add(1)
	return m.result, m.err
}

func TestChain_Scrape_FirstSuccess(t *testing.T) {
	s1 := &mockScraper{
		name: "primary", supports: true,
		result: &Result{
			Page:   Page{URL: "https://acme.com", Title: "Home", Markdown: "content"},
			Source: "primary",
		},
	}
	s2 := &mockScraper{name: "fallback", supports: true}

	chain := NewChain(nil, s1, s2)
	result, err := chain.Scrape(context.Background(), "https://acme.com")

	require.NoError(t, err)
	assert.Equal(t, "primary", result.Source)
	assert.Equal(t, "https://acme.com", result.Page.URL)
	assert.Equal(t, int32(0), s2.calls.Load())
}

func TestChain_Scrape_FallbackOnError(t *testing.T) {
	s1 := &mockScraper{name: "primary", supports: true, err: errors.New("failed")}
	s2 := &mockScraper{
		name: "fallback", supports: true,
		result: &Result{Page: Page{URL: "https://acme.com", Title: "Home"}, Source: "fallback"},
	}

	result, err := NewChain(nil, s1, s2).Scrape(context.Background(), "https://acme.com")

	require.NoError(t, err)
	assert.Equal(t, "fallback", result.Source)
}

func TestChain_Scrape_AllFail(t *testing.T) {
	s1 := &mockScraper{name: "s1", supports: true, err: errors.New("s1 error")}
	s2 := &mockScraper{name: "s2", supports: true, err: errors.New("s2 error")}

	result, err := NewChain(nil, s1, s2).Scrape(context.Background(), "https://acme.com")

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "all scrapers failed")
}

func TestChain_Scrape_KeepsBlockedError(t *testing.T) {
	s1 := &mockScraper{name: "local", supports: true,
		err: eris.Wrap(&BlockedError{URL: "https://acme.com", Type: BlockCaptcha}, "local_http")}
	s2 := &mockScraper{name: "jina", supports: true, err: errors.New("timeout")}

	_, err := NewChain(nil, s1, s2).Scrape(context.Background(), "https://acme.com")

	var be *BlockedError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, BlockCaptcha, be.Type)
}

func TestChain_Scrape_ExcludedURL(t *testing.T) {
	s1 := &mockScraper{name: "s1", supports: true}

	chain := NewChain(NewPathMatcher([]string{"/menus/*"}), s1)
	result, err := chain.Scrape(context.Background(), "https://acme.com/menus/dinner")

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "excluded")
}

func TestChain_Scrape_SkipsUnsupported(t *testing.T) {
	s1 := &mockScraper{name: "s1", supports: false}
	s2 := &mockScraper{
		name: "s2", supports: true,
		result: &Result{Page: Page{URL: "https://acme.com"}, Source: "s2"},
	}

	result, err := NewChain(nil, s1, s2).Scrape(context.Background(), "https://acme.com")

	require.NoError(t, err)
	assert.Equal(t, "s2", result.Source)
	assert.Equal(t, int32(0), s1.calls.Load())
}

func TestChain_Scrape_NoScrapers(t *testing.T) {
	_, err := NewChain(nil).Scrape(context.Background(), "https://acme.com")
	assert.ErrorContains(t, err, "no suitable scraper")
}

func TestChain_Scrape_Cache(t *testing.T) {
	cache, err := store.NewSQLite(filepath.Join(t.TempDir(), "scrape.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	require.NoError(t, cache.Migrate(context.Background()))

	s1 := &mockScraper{
		name: "s1", supports: true,
		result: &Result{Page: Page{URL: "https://acme.com", HTML: "<html></html>"}, Source: "s1"},
	}
	chain := NewChain(nil, s1).WithCache(cache, time.Hour)

	first, err := chain.Scrape(context.Background(), "https://acme.com")
	require.NoError(t, err)
	second, err := chain.Scrape(context.Background(), "https://acme.com")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), s1.calls.Load())
}

func TestChain_ScrapeAll(t *testing.T) {
	s1 := &mockScraper{
		name: "s1", supports: true,
		result: &Result{Page: Page{URL: "fetched", Markdown: "content"}, Source: "s1"},
	}

	chain := NewChain(NewPathMatcher([]string{"/menus/*"}), s1)
	urls := []string{
		"https://acme.com/about",
		"https://acme.com/menus/lunch", // excluded
		"https://acme.com/contact",
	}

	results := chain.ScrapeAll(context.Background(), urls, 5)

	require.Len(t, results, 3)
	assert.NotNil(t, results[0])
	assert.Nil(t, results[1])
	assert.NotNil(t, results[2])
}

func TestChain_ScrapeAll_AllFail(t *testing.T) {
	s1 := &mockScraper{name: "s1", supports: true, err: errors.New("fail")}

	results := NewChain(nil, s1).ScrapeAll(context.Background(), []string{"https://acme.com"}, 0)

	require.Len(t, results, 1)
	assert.Nil(t, results[0])
}
