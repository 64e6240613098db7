package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-engine/internal/store"
)

// Chain tries scrapers in priority order, returning the first success.
type Chain struct {
	PathMatcher *PathMatcher
	scrapers    []Scraper
	cache       store.Cache
	cacheTTL    time.Duration
}

// NewChain creates a Chain with the given path matcher and scrapers.
// Scrapers are tried in order; the first successful result is returned.
func NewChain(matcher *PathMatcher, scrapers ...Scraper) *Chain {
	if matcher == nil {
		matcher = NewPathMatcher(nil)
	}
	return &Chain{
		PathMatcher: matcher,
		scrapers:    scrapers,
	}
}

// WithCache stores successful results for ttl, keyed by URL.
func (c *Chain) WithCache(cache store.Cache, ttl time.Duration) *Chain {
	c.cache = cache
	c.cacheTTL = ttl
	return c
}

// Scrape tries each scraper in order for a single URL.
// Returns the first successful result, or an error if all fail. A
// *BlockedError from any scraper stays reachable via errors.As when no
// later scraper succeeds.
func (c *Chain) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	if c.PathMatcher.IsExcluded(targetURL) {
		return nil, eris.Errorf("scrape: url excluded by path matcher: %s", targetURL)
	}

	key := store.HashKey(targetURL)
	if r := c.cached(ctx, key); r != nil {
		return r, nil
	}

	var lastErr, blockErr error
	for _, s := range c.scrapers {
		if !s.Supports(targetURL) {
			continue
		}
		result, err := s.Scrape(ctx, targetURL)
		if err == nil && result != nil {
			c.store(ctx, key, result)
			return result, nil
		}
		if err != nil {
			zap.L().Debug("scrape: scraper failed, trying next",
				zap.String("scraper", s.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			var be *BlockedError
			if errors.As(err, &be) {
				blockErr = err
			}
			lastErr = err
		}
	}
	if blockErr != nil {
		return nil, eris.Wrap(blockErr, "scrape: all scrapers failed")
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all scrapers failed")
	}
	return nil, eris.Errorf("scrape: no suitable scraper for url: %s", targetURL)
}

// ScrapeAll fetches multiple URLs in parallel using the chain.
// maxConcurrent controls the concurrency limit. The returned slice is
// aligned with urls; failed or excluded URLs leave a nil entry.
func (c *Chain) ScrapeAll(ctx context.Context, urls []string, maxConcurrent int) []*Result {
	out := make([]*Result, len(urls))
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	g := new(errgroup.Group)
	g.SetLimit(maxConcurrent)
	for i, u := range urls {
		g.Go(func() error {
			r, err := c.Scrape(ctx, u)
			if err != nil {
				zap.L().Debug("scrape: url skipped", zap.String("url", u), zap.Error(err))
				return nil
			}
			out[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (c *Chain) cached(ctx context.Context, key string) *Result {
	if c.cache == nil {
		return nil
	}
	data, err := c.cache.Get(ctx, store.NamespaceScrape, key)
	if err != nil || data == nil {
		return nil
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil
	}
	return &r
}

func (c *Chain) store(ctx context.Context, key string, r *Result) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, store.NamespaceScrape, key, data, c.cacheTTL); err != nil {
		zap.L().Debug("scrape: cache write failed", zap.Error(err))
	}
}
