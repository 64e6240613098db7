package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/sells-group/lead-engine/internal/lead"
	"github.com/sells-group/lead-engine/internal/scrape"
	"github.com/sells-group/lead-engine/pkg/jina"
	"github.com/sells-group/lead-engine/pkg/perplexity"
)

type fakeBackend struct {
	mu      sync.Mutex
	queries []string
	recs    []lead.RawBusinessRecord
	err     error
}

func (f *fakeBackend) Name() string { return "google_places" }

func (f *fakeBackend) Search(_ context.Context, q string, _ int) ([]lead.RawBusinessRecord, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	return f.recs, f.err
}

type fakePerplexity struct {
	reply  string
	err    error
	prompt string
}

func (f *fakePerplexity) ChatCompletion(_ context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.prompt = req.Messages[len(req.Messages)-1].Content
	return &perplexity.ChatCompletionResponse{
		Choices: []perplexity.Choice{{Message: perplexity.Message{Role: "assistant", Content: f.reply}}},
	}, nil
}

type fakeJina struct {
	search *jina.SearchResponse
	query  string
}

func (f *fakeJina) Read(context.Context, string) (*jina.ReadResponse, error) {
	return &jina.ReadResponse{}, nil
}

func (f *fakeJina) Search(_ context.Context, q string, _ ...jina.SearchOption) (*jina.SearchResponse, error) {
	f.query = q
	if f.search == nil {
		return &jina.SearchResponse{}, nil
	}
	return f.search, nil
}

func raw(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func ptrF(f float64) *float64 { return &f }

func placeRec(id, name string, rating float64) lead.RawBusinessRecord {
	return lead.RawBusinessRecord{
		ID:               id,
		Name:             name,
		FormattedAddress: "100 Main St, Santa Fe, NM 87501, USA",
		NationalPhone:    "(505) 555-0100",
		Rating:           &rating,
		Types:            []string{"plumber"},
		Provider:         "google_places",
	}
}

type fakeScraper struct {
	mu    sync.Mutex
	pages map[string]scrape.Page
	err   map[string]error
	hits  []string
}

func (f *fakeScraper) Name() string           { return "fake" }
func (f *fakeScraper) Supports(_ string) bool { return true }

func (f *fakeScraper) Scrape(_ context.Context, u string) (*scrape.Result, error) {
	f.mu.Lock()
	f.hits = append(f.hits, u)
	f.mu.Unlock()
	if err := f.err[u]; err != nil {
		return nil, err
	}
	p, ok := f.pages[u]
	if !ok {
		return nil, errors.New("not found")
	}
	p.URL = u
	return &scrape.Result{Page: p, Source: "fake"}, nil
}
