package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/lead"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		query     string
		location  string
		website   lead.WebsiteFilter
		minRating float64
	}{
		{"no website", "plumbers with no website in Santa Fe", "plumbers", "Santa Fe", lead.WebsiteAbsent, 0},
		{"without a website", "Find dentists without a website near Austin, TX", "dentists", "Austin, TX", lead.WebsiteAbsent, 0},
		{"with website", "roofers with a website in Boise", "roofers", "Boise", lead.WebsiteRequired, 0},
		{"rating plus", "burgers rated 4.5+ in Los Angeles", "burgers", "Los Angeles", lead.WebsiteAny, 4.5},
		{"rating words", "search for cafes rated at least 4 stars around Portland.", "cafes", "Portland", lead.WebsiteAny, 4},
		{"first preposition", "bakeries in Salt Lake City in Utah", "bakeries", "Salt Lake City in Utah", lead.WebsiteAny, 0},
		{"no location", "electricians", "electricians", "", lead.WebsiteAny, 0},
		{"compound walk in", "walk in clinics in Reno", "walk in clinics", "Reno", lead.WebsiteAny, 0},
		{"compound drive in", "Drive In theaters near Tulsa, OK", "Drive In theaters", "Tulsa, OK", lead.WebsiteAny, 0},
		{"compound without location", "walk in clinics", "walk in clinics", "", lead.WebsiteAny, 0},
		{"near after compound", "dine in restaurants with no website near Boise", "dine in restaurants", "Boise", lead.WebsiteAbsent, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseRequest(tt.in)
			assert.Equal(t, tt.query, got.Query)
			assert.Equal(t, tt.location, got.Location)
			assert.Equal(t, tt.website, got.Website)
			if tt.minRating == 0 {
				assert.Nil(t, got.MinRating)
			} else {
				require.NotNil(t, got.MinRating)
				assert.InDelta(t, tt.minRating, *got.MinRating, 1e-9)
			}
		})
	}
}

func TestParseRequest_IgnoresOutOfRangeRating(t *testing.T) {
	got := ParseRequest("gyms rated 9 in Miami")
	assert.Nil(t, got.MinRating)
	assert.Equal(t, "Miami", got.Location)
}
