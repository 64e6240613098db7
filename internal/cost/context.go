package cost

import "context"

type trackerKey struct{}

// WithTracker attaches t to ctx so provider adapters deep in a call chain
// can record spend against the current run.
func WithTracker(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// FromContext returns the run's tracker, or nil when none is attached. All
// Tracker methods accept a nil receiver.
func FromContext(ctx context.Context) *Tracker {
	t, _ := ctx.Value(trackerKey{}).(*Tracker)
	return t
}
