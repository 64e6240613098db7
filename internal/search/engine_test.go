package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/lead"
)

type fakeBackend struct {
	mu      sync.Mutex
	calls   []string
	results map[string][]lead.RawBusinessRecord
	errs    map[string]error
	fn      func(ctx context.Context, query string) ([]lead.RawBusinessRecord, error)
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Search(ctx context.Context, query string, limit int) ([]lead.RawBusinessRecord, error) {
	f.mu.Lock()
	f.calls = append(f.calls, query)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, query)
	}
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	return f.results[query], nil
}

func rec(id, name string, rating float64, phone string) lead.RawBusinessRecord {
	return lead.RawBusinessRecord{
		ID:               id,
		Name:             name,
		FormattedAddress: "100 Main St, Santa Fe, NM 87501, USA",
		NationalPhone:    phone,
		Rating:           &rating,
		Types:            []string{"plumber"},
	}
}

func testTable() *BroadeningTable {
	return NewBroadeningTable(map[string]string{
		"plumber": "plumbing service",
		"burger":  "hamburger restaurant",
	})
}

func TestSearch_MergesSameBusinessAcrossStrategies(t *testing.T) {
	abc := rec("p1", "ABC Plumbing", 4.5, "(505) 555-0100")
	fb := &fakeBackend{results: map[string][]lead.RawBusinessRecord{
		"plumbers in Santa Fe":           {abc},
		"plumbing service near Santa Fe": {abc},
		"plumbing service in Santa Fe":   {abc},
	}}
	e := NewEngine(fb, testTable())

	resp, err := e.Search(context.Background(), Request{Query: "plumbers", Location: "Santa Fe"})
	require.NoError(t, err)

	assert.Len(t, fb.calls, 3)
	require.Len(t, resp.Leads, 1)
	assert.Equal(t, "ABC Plumbing", resp.Leads[0].Name)
	assert.Equal(t, 1, resp.TotalFound)
	assert.Equal(t, "plumbers in Santa Fe", resp.SearchQuery)
	assert.Empty(t, resp.Warnings)
	require.Len(t, resp.Strategies, 3)
	for _, s := range resp.Strategies {
		assert.Equal(t, 1, s.Returned)
	}
}

func TestSearch_MinRatingFilter(t *testing.T) {
	fb := &fakeBackend{results: map[string][]lead.RawBusinessRecord{
		"dentists in Austin": {
			rec("a", "Low Dental", 3.2, "512-555-0101"),
			rec("b", "High Dental", 4.8, "512-555-0102"),
		},
	}}
	e := NewEngine(fb, testTable())
	min := 4.0

	resp, err := e.Search(context.Background(), Request{Query: "dentists", Location: "Austin", MinRating: &min})
	require.NoError(t, err)

	require.Len(t, resp.Leads, 1)
	assert.Equal(t, "High Dental", resp.Leads[0].Name)
	assert.Len(t, fb.calls, 1, "no broadening term, exact strategy only")
}

func TestSearch_BroadenedStrategyFindsHigherRatedBusiness(t *testing.T) {
	low := rec("b1", "Corner Burger Shack", 3.2, "(213) 555-0101")
	high := rec("b2", "Grill House", 4.8, "(213) 555-0102")
	fb := &fakeBackend{fn: func(_ context.Context, q string) ([]lead.RawBusinessRecord, error) {
		switch {
		case strings.HasPrefix(q, "burgers in "):
			return []lead.RawBusinessRecord{low}, nil
		case strings.Contains(q, " near "):
			return []lead.RawBusinessRecord{high}, nil
		}
		return nil, nil
	}}
	e := NewEngine(fb, testTable())

	resp, err := e.Search(context.Background(), Request{Query: "burgers", Location: "Los Angeles, CA"})
	require.NoError(t, err)
	var names []string
	for _, l := range resp.Leads {
		names = append(names, l.Name)
	}
	assert.ElementsMatch(t, []string{"Corner Burger Shack", "Grill House"}, names)

	min := 4.0
	resp, err = e.Search(context.Background(), Request{Query: "burgers", Location: "Los Angeles, CA", MinRating: &min})
	require.NoError(t, err)
	require.Len(t, resp.Leads, 1)
	assert.Equal(t, "Grill House", resp.Leads[0].Name)
}

func TestSearch_MergeKeepsEveryDistinctBusinessInStrategyOrder(t *testing.T) {
	fb := &fakeBackend{results: map[string][]lead.RawBusinessRecord{
		"plumbers in Reno":           {rec("1", "One", 4, "1"), rec("2", "Two", 4, "2")},
		"plumbing service near Reno": {rec("2", "Two (dup)", 4, "2"), rec("3", "Three", 4, "3")},
		"plumbing service in Reno":   {rec("", "Four", 4, "4"), rec("", "four", 4, "4b")},
	}}
	e := NewEngine(fb, testTable())

	resp, err := e.Search(context.Background(), Request{Query: "plumbers", Location: "Reno"})
	require.NoError(t, err)

	var names []string
	for _, l := range resp.Leads {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"One", "Two", "Three", "Four"}, names)
}

func TestSearch_WebsiteFilterAndContactPresence(t *testing.T) {
	withSite := rec("1", "Has Site", 4, "")
	withSite.Website = "acme.com"
	noSite := rec("2", "No Site", 4, "555-0102")
	noContact := rec("3", "Ghost", 4, "")

	fb := &fakeBackend{results: map[string][]lead.RawBusinessRecord{
		"roofers": {withSite, noSite, noContact},
	}}
	e := NewEngine(fb, testTable())

	resp, err := e.Search(context.Background(), Request{Query: "roofers", Website: lead.WebsiteAbsent})
	require.NoError(t, err)
	require.Len(t, resp.Leads, 1)
	assert.Equal(t, "No Site", resp.Leads[0].Name)

	resp, err = e.Search(context.Background(), Request{Query: "roofers", Website: lead.WebsiteRequired})
	require.NoError(t, err)
	require.Len(t, resp.Leads, 1)
	assert.Equal(t, "Has Site", resp.Leads[0].Name)

	resp, err = e.Search(context.Background(), Request{Query: "roofers"})
	require.NoError(t, err)
	for _, l := range resp.Leads {
		assert.True(t, l.HasContact())
	}
	assert.Len(t, resp.Leads, 2)
}

func TestSearch_TruncatesButReportsTotal(t *testing.T) {
	var recs []lead.RawBusinessRecord
	for i := range 8 {
		recs = append(recs, rec(fmt.Sprint(i), fmt.Sprintf("Biz %d", i), 4, "555"))
	}
	fb := &fakeBackend{results: map[string][]lead.RawBusinessRecord{"cafes": recs}}
	e := NewEngine(fb, testTable())

	resp, err := e.Search(context.Background(), Request{Query: "cafes", MaxResults: 3})
	require.NoError(t, err)
	assert.Len(t, resp.Leads, 3)
	assert.Equal(t, 8, resp.TotalFound)
	assert.Equal(t, "Biz 0", resp.Leads[0].Name)
}

func TestSearch_PerCallCap(t *testing.T) {
	var recs []lead.RawBusinessRecord
	for i := range 10 {
		recs = append(recs, rec(fmt.Sprint(i), fmt.Sprintf("Biz %d", i), 4, "555"))
	}
	fb := &fakeBackend{results: map[string][]lead.RawBusinessRecord{"cafes": recs}}
	e := NewEngine(fb, testTable(), WithPerCallCap(4))

	resp, err := e.Search(context.Background(), Request{Query: "cafes"})
	require.NoError(t, err)
	assert.Equal(t, 4, resp.TotalFound)
}

func TestSearch_PartialFailureIsWarning(t *testing.T) {
	fb := &fakeBackend{
		results: map[string][]lead.RawBusinessRecord{
			"plumbers in Reno": {rec("1", "One", 4, "1")},
		},
		errs: map[string]error{
			"plumbing service near Reno": errors.New("boom"),
		},
	}
	e := NewEngine(fb, testTable())

	resp, err := e.Search(context.Background(), Request{Query: "plumbers", Location: "Reno"})
	require.NoError(t, err)
	assert.Len(t, resp.Leads, 1)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "broadened")
	assert.Equal(t, "boom", resp.Strategies[1].Error)
}

func TestSearch_AllStrategiesFail(t *testing.T) {
	fb := &fakeBackend{fn: func(context.Context, string) ([]lead.RawBusinessRecord, error) {
		return nil, errors.New("down")
	}}
	e := NewEngine(fb, testTable())

	_, err := e.Search(context.Background(), Request{Query: "plumbers", Location: "Reno"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 3 strategies failed")
}

func TestSearch_StrategiesRunConcurrently(t *testing.T) {
	var mu sync.Mutex
	inflight, peak := 0, 0
	fb := &fakeBackend{fn: func(ctx context.Context, q string) ([]lead.RawBusinessRecord, error) {
		mu.Lock()
		inflight++
		if inflight > peak {
			peak = inflight
		}
		mu.Unlock()
		time.Sleep(30 * time.Millisecond)
		mu.Lock()
		inflight--
		mu.Unlock()
		return nil, nil
	}}
	e := NewEngine(fb, testTable())

	_, err := e.Search(context.Background(), Request{Query: "burgers", Location: "LA"})
	require.NoError(t, err)
	assert.Equal(t, 3, peak)
}

func TestSearch_PerCallTimeout(t *testing.T) {
	fb := &fakeBackend{fn: func(ctx context.Context, q string) ([]lead.RawBusinessRecord, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	e := NewEngine(fb, testTable(), WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := e.Search(context.Background(), Request{Query: "cafes"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSearch_EmptyQuery(t *testing.T) {
	e := NewEngine(&fakeBackend{}, testTable())
	_, err := e.Search(context.Background(), Request{Query: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearch_NoBackendConfigured(t *testing.T) {
	e := NewEngine(nil, testTable())
	assert.False(t, e.Configured())

	resp, err := e.Search(context.Background(), Request{Query: "cafes", Location: "Boise"})
	require.NoError(t, err)
	assert.Empty(t, resp.Leads)
	assert.NotNil(t, resp.Leads)
	assert.Contains(t, resp.Message, "no search backend")
	assert.Equal(t, "cafes in Boise", resp.SearchQuery)
}

func TestSearch_Timestamp(t *testing.T) {
	e := NewEngine(&fakeBackend{}, testTable())
	e.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	resp, err := e.Search(context.Background(), Request{Query: "cafes"})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T12:00:00Z", resp.Timestamp)
}

func TestMerge_NameFallbackIsCaseInsensitive(t *testing.T) {
	out := Merge(
		[]lead.RawBusinessRecord{{Name: "Joe's  Diner"}},
		[]lead.RawBusinessRecord{{Name: "joe's diner"}, {ID: "x", Name: "Joe's Diner"}},
	)
	assert.Len(t, out, 2)
}
