package cost

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/lead-engine/internal/config"
)

func testRates() config.PricingConfig {
	return config.PricingConfig{
		Anthropic: map[string]config.ModelPricing{
			"haiku":  {Input: 0.80, Output: 4.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
			"sonnet": {Input: 3.00, Output: 15.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
		},
		GooglePlaces: config.GooglePricing{PerRequest: 0.032},
		Jina:         config.JinaPricing{PerMTok: 0.02},
		Perplexity:   config.PerplexityPricing{PerQuery: 0.005},
		Firecrawl:    config.FirecrawlPricing{PerScrape: 0.001},
	}
}

func TestCalculator_Claude(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name                                 string
		model                                string
		input, output, cacheWrite, cacheRead int64
		want                                 float64
	}{
		{name: "haiku simple", model: "haiku", input: 1_000_000, output: 100_000, want: 0.80 + 0.40},
		{name: "sonnet with cache", model: "sonnet", input: 0, output: 0, cacheWrite: 1_000_000, cacheRead: 1_000_000, want: 3.75 + 0.30},
		{name: "unknown model", model: "gpt", input: 1_000_000, want: 0},
		{name: "zero", model: "sonnet", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Claude(tt.model, tt.input, tt.output, tt.cacheWrite, tt.cacheRead)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestTracker_AccumulatesByProvider(t *testing.T) {
	tr := NewTracker(NewCalculator(testRates()))
	tr.AddPlacesRequest()
	tr.AddPlacesRequest()
	tr.AddPerplexityQuery()
	tr.AddJina(500_000)
	tr.AddFirecrawlScrape()
	tr.AddClaude("sonnet", 1_000_000, 0, 0, 0)

	assert.InDelta(t, 0.064+0.005+0.01+0.001+3.0, tr.Total(), 1e-9)

	items := tr.Items()
	assert.Len(t, items, 5)
	assert.Equal(t, Anthropic, items[0].Provider)
	for _, item := range items {
		if item.Provider == GooglePlaces {
			assert.Equal(t, 2, item.Calls)
		}
	}
}

func TestTracker_ConcurrentAdds(t *testing.T) {
	tr := NewTracker(NewCalculator(testRates()))
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.AddPlacesRequest()
		}()
	}
	wg.Wait()
	assert.InDelta(t, 3.2, tr.Total(), 1e-9)
}

func TestTracker_NilIsNoop(t *testing.T) {
	var tr *Tracker
	assert.NotPanics(t, func() {
		tr.AddPlacesRequest()
		tr.AddClaude("sonnet", 1, 1, 0, 0)
		tr.Log("run-1")
	})
	assert.Zero(t, tr.Total())
	assert.Nil(t, tr.Items())
}

func TestContextRoundTrip(t *testing.T) {
	tr := NewTracker(NewCalculator(testRates()))
	ctx := WithTracker(context.Background(), tr)
	assert.Same(t, tr, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))

	FromContext(context.Background()).AddPlacesRequest()
	FromContext(ctx).AddPlacesRequest()
	assert.InDelta(t, 0.032, tr.Total(), 1e-9)
}
