// Package cost tracks the estimated USD spend of one search or orchestration
// run across the paid providers it touches.
package cost

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/config"
)

// Provider names used as tracker line items.
const (
	Anthropic    = "anthropic"
	GooglePlaces = "google_places"
	Perplexity   = "perplexity"
	Jina         = "jina"
	Firecrawl    = "firecrawl"
)

// Calculator converts usage into USD using configured rates.
type Calculator struct {
	rates config.PricingConfig
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates config.PricingConfig) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost of one Anthropic call. Unknown models cost 0.
func (c *Calculator) Claude(model string, input, output, cacheWrite, cacheRead int64) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}
	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output
	cwCost := (float64(cacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(cacheRead) / 1e6) * rate.Input * rate.CacheReadMul
	return inCost + outCost + cwCost + crCost
}

// Jina computes the cost of Jina Reader token usage.
func (c *Calculator) Jina(tokens int) float64 {
	return (float64(tokens) / 1e6) * c.rates.Jina.PerMTok
}

// Tracker accumulates cost line items for a single run. It is safe for
// concurrent use by tool calls dispatched in parallel.
type Tracker struct {
	calc *Calculator

	mu    sync.Mutex
	items map[string]*LineItem
}

// LineItem aggregates calls and cost for one provider.
type LineItem struct {
	Provider string  `json:"provider"`
	Calls    int     `json:"calls"`
	CostUSD  float64 `json:"cost_usd"`
}

// NewTracker creates a Tracker using calc. A nil *Tracker ignores all calls.
func NewTracker(calc *Calculator) *Tracker {
	return &Tracker{calc: calc, items: make(map[string]*LineItem)}
}

// AddClaude records one Anthropic call.
func (t *Tracker) AddClaude(model string, input, output, cacheWrite, cacheRead int64) {
	if t == nil {
		return
	}
	t.add(Anthropic, t.calc.Claude(model, input, output, cacheWrite, cacheRead))
}

// AddPlacesRequest records one billed Places Text Search request.
func (t *Tracker) AddPlacesRequest() {
	if t == nil {
		return
	}
	t.add(GooglePlaces, t.calc.rates.GooglePlaces.PerRequest)
}

// AddPerplexityQuery records one Perplexity completion.
func (t *Tracker) AddPerplexityQuery() {
	if t == nil {
		return
	}
	t.add(Perplexity, t.calc.rates.Perplexity.PerQuery)
}

// AddJina records Jina Reader token usage.
func (t *Tracker) AddJina(tokens int) {
	if t == nil {
		return
	}
	t.add(Jina, t.calc.Jina(tokens))
}

// AddFirecrawlScrape records one Firecrawl scrape.
func (t *Tracker) AddFirecrawlScrape() {
	if t == nil {
		return
	}
	t.add(Firecrawl, t.calc.rates.Firecrawl.PerScrape)
}

func (t *Tracker) add(provider string, usd float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[provider]
	if !ok {
		item = &LineItem{Provider: provider}
		t.items[provider] = item
	}
	item.Calls++
	item.CostUSD += usd
}

// Total returns the summed cost in USD.
func (t *Tracker) Total() float64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var total float64
	for _, item := range t.items {
		total += item.CostUSD
	}
	return total
}

// Items returns the line items sorted by provider.
func (t *Tracker) Items() []LineItem {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]LineItem, 0, len(t.items))
	for _, item := range t.items {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// Log writes the tracker's line items and total at info level.
func (t *Tracker) Log(runID string) {
	if t == nil {
		return
	}
	fields := []zap.Field{zap.String("run_id", runID), zap.Float64("total_usd", t.Total())}
	for _, item := range t.Items() {
		fields = append(fields,
			zap.Int(item.Provider+"_calls", item.Calls),
			zap.Float64(item.Provider+"_usd", item.CostUSD),
		)
	}
	zap.L().Info("run cost", fields...)
}
