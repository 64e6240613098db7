package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/agent"
	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/cost"
	"github.com/sells-group/lead-engine/internal/resilience"
	"github.com/sells-group/lead-engine/internal/scorer"
	"github.com/sells-group/lead-engine/internal/scrape"
	"github.com/sells-group/lead-engine/internal/search"
	"github.com/sells-group/lead-engine/internal/store"
	"github.com/sells-group/lead-engine/internal/tools"
	anthropicpkg "github.com/sells-group/lead-engine/pkg/anthropic"
	"github.com/sells-group/lead-engine/pkg/firecrawl"
	"github.com/sells-group/lead-engine/pkg/google"
	"github.com/sells-group/lead-engine/pkg/jina"
	"github.com/sells-group/lead-engine/pkg/perplexity"
)

// engineEnv holds every initialized component the commands need.
type engineEnv struct {
	Cache        store.Cache // may be nil
	Guard        *resilience.Guard
	Pricing      *cost.Calculator
	Engine       *search.Engine
	Scorer       *scorer.Scorer
	Registry     *tools.Registry
	Orchestrator *agent.Orchestrator
}

// Close releases resources held by the environment.
func (e *engineEnv) Close() {
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
}

// initEngine validates cfg for mode and wires the cache, provider clients,
// search engine, scorer, scrape chain, tool registry and orchestrator.
// Providers without a key are left out; their tools report that they are
// not configured. Callers should defer env.Close().
func initEngine(ctx context.Context, cfg *config.Config, mode string) (*engineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	cache, err := store.Open(ctx, cfg.Cache)
	if err != nil {
		return nil, eris.Wrap(err, "open cache")
	}

	guard := resilience.FromConfig(cfg.Resilience)
	pricing := cost.NewCalculator(cfg.Pricing)

	table, err := search.LoadBroadeningTable(cfg.Search.BroadeningFile)
	if err != nil {
		if cache != nil {
			_ = cache.Close()
		}
		return nil, err
	}

	var backend search.Backend
	if cfg.Google.Key != "" {
		client := google.NewClient(cfg.Google.Key, google.WithBaseURL(cfg.Google.BaseURL))
		opts := []search.PlacesOption{
			search.WithGuard(guard),
			search.WithRateLimit(cfg.Google.RateLimit),
		}
		if cache != nil {
			opts = append(opts, search.WithCache(cache, cfg.Search.CacheTTL()))
		}
		backend = search.NewPlacesBackend(client, opts...)
		zap.L().Info("google places search enabled")
	} else {
		zap.L().Warn("LEADGEN_GOOGLE_KEY not set, business search disabled")
	}
	engine := search.NewEngine(backend, table,
		search.WithPerCallCap(cfg.Search.PerCallCap),
		search.WithTimeout(cfg.Search.Timeout()),
	)

	var anthropicClient anthropicpkg.Client
	if cfg.Anthropic.Key != "" {
		anthropicClient = anthropicpkg.NewClient(cfg.Anthropic.Key)
	} else {
		zap.L().Warn("LEADGEN_ANTHROPIC_KEY not set, using heuristic scoring and no orchestration")
	}
	sc := scorer.New(anthropicClient,
		scorer.WithModel(cfg.Anthropic.ScoringModel),
		scorer.WithConcurrency(cfg.Scorer.Concurrency),
		scorer.WithGuard(guard),
	)

	var perplexityClient perplexity.Client
	if cfg.Perplexity.Key != "" {
		perplexityClient = perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
	}

	// Scrape chain: local fetch first, then Jina Reader, then Firecrawl.
	scrapers := []scrape.Scraper{scrape.NewLocalScraper()}
	var jinaClient jina.Client
	if cfg.Jina.Key != "" {
		jinaOpts := []jina.Option{jina.WithBaseURL(cfg.Jina.BaseURL)}
		if cfg.Jina.SearchBaseURL != "" {
			jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
		}
		jinaClient = jina.NewClient(cfg.Jina.Key, jinaOpts...)
		scrapers = append(scrapers, scrape.NewJinaAdapter(jinaClient))
	}
	if cfg.Firecrawl.Key != "" {
		fc := firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
		scrapers = append(scrapers, scrape.NewFirecrawlAdapter(fc))
	}
	chain := scrape.NewChain(nil, scrapers...)
	if cache != nil {
		chain = chain.WithCache(cache, cfg.Search.CacheTTL())
	}

	registry := tools.NewRegistry(tools.Deps{
		Engine:          engine,
		Places:          backend,
		Perplexity:      perplexityClient,
		PerplexityModel: cfg.Perplexity.Model,
		Scrape:          chain,
		Jina:            jinaClient,
		Scorer:          sc,
		Guard:           guard,
		AILimit:         cfg.Scorer.AILimit,
	})

	orch := agent.New(anthropicClient, registry,
		agent.WithModel(cfg.Anthropic.Model, cfg.Anthropic.MaxTokens),
		agent.WithGuard(guard),
		agent.WithPricing(pricing),
		agent.WithLimits(cfg.Agent),
		agent.WithCallTimeout(cfg.Tools.CallTimeout()),
	)

	return &engineEnv{
		Cache:        cache,
		Guard:        guard,
		Pricing:      pricing,
		Engine:       engine,
		Scorer:       sc,
		Registry:     registry,
		Orchestrator: orch,
	}, nil
}
