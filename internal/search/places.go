package search

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-engine/internal/cost"
	"github.com/sells-group/lead-engine/internal/lead"
	"github.com/sells-group/lead-engine/internal/resilience"
	"github.com/sells-group/lead-engine/internal/store"
	"github.com/sells-group/lead-engine/pkg/google"
)

// ProviderGooglePlaces is the Source recorded on leads found via Places.
const ProviderGooglePlaces = "google_places"

// PlacesBackend adapts the Google Places text search client to Backend.
// Calls are rate limited, guarded by retries and a circuit breaker, and
// optionally cached.
type PlacesBackend struct {
	client   google.Client
	guard    *resilience.Guard
	limiter  *rate.Limiter
	cache    store.Cache
	cacheTTL time.Duration
}

// PlacesOption configures a PlacesBackend.
type PlacesOption func(*PlacesBackend)

// WithGuard wraps backend calls with retries and a circuit breaker.
func WithGuard(g *resilience.Guard) PlacesOption {
	return func(b *PlacesBackend) { b.guard = g }
}

// WithRateLimit caps requests per second. Zero or less disables limiting.
func WithRateLimit(rps float64) PlacesOption {
	return func(b *PlacesBackend) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			b.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithCache stores successful responses for ttl.
func WithCache(c store.Cache, ttl time.Duration) PlacesOption {
	return func(b *PlacesBackend) {
		b.cache = c
		b.cacheTTL = ttl
	}
}

// NewPlacesBackend creates a Backend over a Places client.
func NewPlacesBackend(client google.Client, opts ...PlacesOption) *PlacesBackend {
	b := &PlacesBackend{client: client}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Name implements Backend.
func (b *PlacesBackend) Name() string { return ProviderGooglePlaces }

// Search implements Backend.
func (b *PlacesBackend) Search(ctx context.Context, query string, limit int) ([]lead.RawBusinessRecord, error) {
	if limit <= 0 || limit > google.MaxResultCount {
		limit = google.MaxResultCount
	}
	key := store.HashKey(query, strconv.Itoa(limit))

	if recs, ok := b.cached(ctx, key); ok {
		return recs, nil
	}

	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "places: rate limit wait")
		}
	}

	resp, err := resilience.Call(ctx, b.guard, ProviderGooglePlaces, "text_search",
		func(ctx context.Context) (*google.TextSearchResponse, error) {
			return b.client.TextSearch(ctx, google.TextSearchRequest{
				TextQuery:      query,
				MaxResultCount: limit,
			})
		})
	cost.FromContext(ctx).AddPlacesRequest()
	if err != nil {
		return nil, eris.Wrapf(err, "places: search %q", query)
	}

	recs := make([]lead.RawBusinessRecord, 0, len(resp.Places))
	for _, p := range resp.Places {
		recs = append(recs, FromPlace(p))
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}
	b.store(ctx, key, recs)
	return recs, nil
}

func (b *PlacesBackend) cached(ctx context.Context, key string) ([]lead.RawBusinessRecord, bool) {
	if b.cache == nil {
		return nil, false
	}
	data, err := b.cache.Get(ctx, store.NamespacePlaces, key)
	if err != nil {
		zap.L().Debug("places: cache read failed", zap.Error(err))
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	var recs []lead.RawBusinessRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		zap.L().Debug("places: cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return recs, true
}

func (b *PlacesBackend) store(ctx context.Context, key string, recs []lead.RawBusinessRecord) {
	if b.cache == nil || b.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return
	}
	if err := b.cache.Set(ctx, store.NamespacePlaces, key, data, b.cacheTTL); err != nil {
		zap.L().Debug("places: cache write failed", zap.Error(err))
	}
}

// FromPlace maps a Places result to a raw record.
func FromPlace(p google.Place) lead.RawBusinessRecord {
	comps := make([]lead.AddressComponent, 0, len(p.AddressComponents))
	for _, c := range p.AddressComponents {
		comps = append(comps, lead.AddressComponent{LongText: c.LongText, ShortText: c.ShortText, Types: c.Types})
	}
	types := p.Types
	if p.PrimaryType != "" && (len(types) == 0 || types[0] != p.PrimaryType) {
		types = append([]string{p.PrimaryType}, types...)
	}
	return lead.RawBusinessRecord{
		ID:                 p.ID,
		Name:               p.DisplayName.Text,
		FormattedAddress:   p.FormattedAddress,
		Components:         comps,
		NationalPhone:      p.NationalPhoneNumber,
		InternationalPhone: p.InternationalPhoneNumber,
		Rating:             p.Rating,
		ReviewCount:        p.UserRatingCount,
		Website:            p.WebsiteURI,
		Types:              types,
		BusinessStatus:     p.BusinessStatus,
		Provider:           ProviderGooglePlaces,
	}
}
