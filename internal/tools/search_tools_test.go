package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/lead"
	"github.com/sells-group/lead-engine/internal/search"
)

func TestPlacesTool_NotConfigured(t *testing.T) {
	res, err := (&placesTool{}).Execute(context.Background(), raw(map[string]any{"query": "plumbers"}))
	require.NoError(t, err)
	assert.Empty(t, res.Leads)
	assert.Contains(t, res.Message, "not configured")
}

func TestPlacesTool_FiltersAndLimits(t *testing.T) {
	b := &fakeBackend{recs: []lead.RawBusinessRecord{
		placeRec("p1", "ABC Plumbing", 4.6),
		placeRec("p2", "Leaky Pipes", 3.1),
		placeRec("p3", "Drain Pros", 4.9),
	}}
	tool := &placesTool{deps: Deps{Places: b}}

	res, err := tool.Execute(context.Background(), raw(map[string]any{
		"query":       "plumbers",
		"location":    "Santa Fe, NM",
		"min_rating":  4.0,
		"max_results": 1,
		"industry":    "Plumbing",
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"plumbers in Santa Fe, NM"}, b.queries)
	require.Len(t, res.Leads, 1)
	assert.Equal(t, "ABC Plumbing", res.Leads[0].Name)
	assert.Equal(t, "Plumbing", res.Leads[0].Industry)
	assert.Equal(t, "google_places", res.Leads[0].Source)
}

func TestPlacesTool_BackendError(t *testing.T) {
	tool := &placesTool{deps: Deps{Places: &fakeBackend{err: errors.New("quota")}}}
	_, err := tool.Execute(context.Background(), raw(map[string]any{"query": "plumbers"}))
	assert.Error(t, err)
}

func TestFanoutTool_UsesEngine(t *testing.T) {
	b := &fakeBackend{recs: []lead.RawBusinessRecord{placeRec("p1", "ABC Plumbing", 4.6)}}
	engine := search.NewEngine(b, nil)
	tool := &fanoutTool{deps: Deps{Engine: engine}}

	res, err := tool.Execute(context.Background(), raw(map[string]any{
		"query":    "plumbers",
		"location": "Santa Fe, NM",
		"website":  "any",
	}))
	require.NoError(t, err)

	require.Len(t, res.Leads, 1)
	data, ok := res.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, data["total_found"])
	assert.Equal(t, "plumbers in Santa Fe, NM", data["search_query"])
	assert.NotEmpty(t, b.queries)
}

func TestFanoutTool_NotConfigured(t *testing.T) {
	res, err := (&fanoutTool{}).Execute(context.Background(), raw(map[string]any{"query": "plumbers"}))
	require.NoError(t, err)
	assert.Contains(t, res.Message, "not configured")
}

func TestPerplexityBusinessesTool(t *testing.T) {
	pp := &fakePerplexity{reply: "Here you go:\n```json\n" + `[
		{"name": "Sunrise Bakery", "address": "12 Canyon Rd, Santa Fe, NM 87501, USA", "phone": "(505) 555-0111", "website": "sunrisebakery.com", "rating": 4.4, "review_count": 12, "category": "Bakery"},
		{"name": "Home Crust", "address": "48 Alto St, Santa Fe, NM 87501, USA", "phone": "(505) 555-0122", "website": "", "rating": null, "review_count": null, "category": ""},
		{"name": "Ghost Kitchen", "address": "", "phone": "", "website": "", "rating": null, "review_count": null, "category": ""}
	]` + "\n```"}
	tool := &perplexityBusinessesTool{deps: Deps{Perplexity: pp}}

	res, err := tool.Execute(context.Background(), raw(map[string]any{"query": "bakeries", "location": "Santa Fe, NM"}))
	require.NoError(t, err)

	assert.Contains(t, pp.prompt, `"bakeries in Santa Fe, NM"`)
	require.Len(t, res.Leads, 2)
	first := res.Leads[0]
	assert.Equal(t, "Sunrise Bakery", first.Name)
	assert.Equal(t, ProviderPerplexity, first.Source)
	assert.Equal(t, "Santa Fe", first.City)
	assert.Equal(t, "NM", first.State)
	require.NotNil(t, first.Website)
	assert.Equal(t, "https://sunrisebakery.com", *first.Website)
	assert.Nil(t, res.Leads[1].Website)
	assert.Nil(t, res.Leads[1].Rating)
}

func TestPerplexityBusinessesTool_Errors(t *testing.T) {
	_, err := (&perplexityBusinessesTool{deps: Deps{Perplexity: &fakePerplexity{err: errors.New("down")}}}).
		Execute(context.Background(), raw(map[string]any{"query": "bakeries"}))
	assert.Error(t, err)

	_, err = (&perplexityBusinessesTool{deps: Deps{Perplexity: &fakePerplexity{reply: "   "}}}).
		Execute(context.Background(), raw(map[string]any{"query": "bakeries"}))
	assert.ErrorContains(t, err, "no content")
}

func TestParseBusinessList(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    int
		wantErr bool
	}{
		{"plain array", `[{"name":"A"},{"name":"B"}]`, 2, false},
		{"with prose", `Sure! [{"name":"A"}] Hope this helps.`, 1, false},
		{"empty array", `[]`, 0, false},
		{"no array", `I could not find any.`, 0, true},
		{"missing name", `[{"name":"A"},{"phone":"1"}]`, 0, true},
		{"wrong shape", `[1, 2]`, 0, true},
		{"citations before fence", "Here are plumbers in Santa Fe [1][2]:\n```json\n[{\"name\":\"ABC Plumbing\",\"address\":\"1 Main St, Santa Fe, NM 87501\"}]\n```", 1, false},
		{"citations inline", `Found these [1]: [{"name":"A"},{"name":"B"}] sources [2][3]`, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBusinessList(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}
