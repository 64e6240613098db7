package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/lead"
	"github.com/sells-group/lead-engine/internal/search"
	"github.com/sells-group/lead-engine/internal/store"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"search", "orchestrate", "tools", "serve", "cache"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}

	var prune bool
	for _, c := range cacheCmd.Commands() {
		prune = prune || c.Name() == "prune"
	}
	assert.True(t, prune)
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "lead-engine", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCommandFlags(t *testing.T) {
	for _, f := range []string{"location", "max-results", "min-rating", "website", "score", "json"} {
		assert.NotNil(t, searchCmd.Flags().Lookup(f), "search --%s", f)
	}
	for _, f := range []string{"max-iterations", "email", "website-analysis", "json"} {
		assert.NotNil(t, orchestrateCmd.Flags().Lookup(f), "orchestrate --%s", f)
	}
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}

func resetSearchFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		searchLocation, searchWebsite, searchIndustry = "", "", ""
		searchMaxResults, searchMinRating = 0, 0
	})
}

func TestBuildSearchRequest_ParsesSentence(t *testing.T) {
	resetSearchFlags(t)

	req, err := buildSearchRequest("burgers with no website in Los Angeles, CA", false)
	require.NoError(t, err)
	assert.Equal(t, "burgers", req.Query)
	assert.Equal(t, "Los Angeles, CA", req.Location)
	assert.Equal(t, lead.WebsiteAbsent, req.Website)
	assert.Nil(t, req.MinRating)
}

func TestBuildSearchRequest_FlagsWin(t *testing.T) {
	resetSearchFlags(t)
	searchLocation = "Reno, NV"
	searchWebsite = "required"
	searchMinRating = 4.2
	searchMaxResults = 5

	req, err := buildSearchRequest("plumbers in Sparks", true)
	require.NoError(t, err)
	assert.Equal(t, "plumbers in Sparks", req.Query)
	assert.Equal(t, "Reno, NV", req.Location)
	assert.Equal(t, lead.WebsiteRequired, req.Website)
	require.NotNil(t, req.MinRating)
	assert.Equal(t, 4.2, *req.MinRating)
	assert.Equal(t, 5, req.MaxResults)
}

func TestBuildSearchRequest_Invalid(t *testing.T) {
	resetSearchFlags(t)
	searchWebsite = "sometimes"
	_, err := buildSearchRequest("plumbers", false)
	assert.Error(t, err)

	searchWebsite = ""
	searchMinRating = 9
	_, err = buildSearchRequest("plumbers", true)
	assert.Error(t, err)
}

func TestPrintSearch(t *testing.T) {
	rating := 4.5
	resp := &search.Response{
		SearchQuery: "plumbers in Reno",
		TotalFound:  3,
		Warnings:    []string{"broadened strategy failed: timeout"},
		Leads: []lead.Lead{{
			Name:             "Silver State Plumbing",
			Phone:            lead.StringPtr("(775) 555-0100"),
			Rating:           &rating,
			City:             "Reno",
			OpportunityScore: 72,
		}},
	}
	var buf bytes.Buffer
	printSearch(&buf, resp, 0.032)

	out := buf.String()
	assert.Contains(t, out, "Search: plumbers in Reno")
	assert.Contains(t, out, "warning: broadened strategy failed: timeout")
	assert.Contains(t, out, "Silver State Plumbing")
	assert.Contains(t, out, "4.5")
	assert.Contains(t, out, "1 shown of 3 found")
	lines := strings.Split(out, "\n")
	assert.True(t, strings.HasPrefix(lines[2], "SCORE"))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Search: config.SearchConfig{PerCallCap: 20, MaxResults: 20, TimeoutSecs: 5, CacheTTLHours: 1},
		Scorer: config.ScorerConfig{AILimit: 10, Concurrency: 2},
		Agent:  config.AgentConfig{MaxIterations: 5},
		Cache:  config.CacheConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "cache.db")},
		Server: config.ServerConfig{Port: 8080},
	}
}

func TestInitEngine_WithoutKeys(t *testing.T) {
	env, err := initEngine(context.Background(), testConfig(t), "search")
	require.NoError(t, err)
	defer env.Close()

	require.NotNil(t, env.Cache)
	assert.False(t, env.Engine.Configured())
	assert.False(t, env.Scorer.AIEnabled())
	assert.False(t, env.Orchestrator.Configured())
	require.NotNil(t, env.Registry)

	resp, err := env.Engine.Search(context.Background(), search.Request{Query: "plumbers", Location: "Reno"})
	require.NoError(t, err)
	assert.Empty(t, resp.Leads)
	assert.Contains(t, resp.Message, "no search backend configured")
}

func TestInitEngine_WithKeys(t *testing.T) {
	cfg := testConfig(t)
	cfg.Google.Key = "g"
	cfg.Anthropic.Key = "a"
	cfg.Jina.Key = "j"
	cfg.Perplexity.Key = "p"
	cfg.Cache.Driver = "none"

	env, err := initEngine(context.Background(), cfg, "orchestrate")
	require.NoError(t, err)
	defer env.Close()

	assert.Nil(t, env.Cache)
	assert.True(t, env.Engine.Configured())
	assert.True(t, env.Scorer.AIEnabled())
	assert.True(t, env.Orchestrator.Configured())
}

func TestInitEngine_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	_, err := initEngine(context.Background(), cfg, "orchestrate")
	assert.ErrorContains(t, err, "anthropic.key is required")

	cfg.Search.BroadeningFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = initEngine(context.Background(), cfg, "search")
	assert.Error(t, err)
}

func TestCachePrune(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cache.db")
	c, err := store.Open(context.Background(), config.CacheConfig{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), store.NamespacePlaces, "k", []byte("v"), -time.Hour))
	require.NoError(t, c.Close())

	t.Setenv("LEADGEN_CACHE_DRIVER", "sqlite")
	t.Setenv("LEADGEN_CACHE_DSN", dsn)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"cache", "prune"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "deleted 1 expired entries")
}
