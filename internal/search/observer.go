package search

import (
	"context"
	"time"
)

// Observer receives pipeline events. Implementations must be safe for
// concurrent use since detail lookups may run in parallel.
type Observer interface {
	PageFetched(ctx context.Context, page, results int, elapsed time.Duration, err error)
	DetailLookedUp(ctx context.Context, cached bool, elapsed time.Duration, err error)
	SearchFinished(ctx context.Context, rows int, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) PageFetched(context.Context, int, int, time.Duration, error) {}
func (nopObserver) DetailLookedUp(context.Context, bool, time.Duration, error)  {}
func (nopObserver) SearchFinished(context.Context, int, time.Duration, error)   {}

// MultiObserver fans events out to several observers.
type MultiObserver []Observer

func (m MultiObserver) PageFetched(ctx context.Context, page, results int, elapsed time.Duration, err error) {
	for _, o := range m {
		o.PageFetched(ctx, page, results, elapsed, err)
	}
}

func (m MultiObserver) DetailLookedUp(ctx context.Context, cached bool, elapsed time.Duration, err error) {
	for _, o := range m {
		o.DetailLookedUp(ctx, cached, elapsed, err)
	}
}

func (m MultiObserver) SearchFinished(ctx context.Context, rows int, elapsed time.Duration, err error) {
	for _, o := range m {
		o.SearchFinished(ctx, rows, elapsed, err)
	}
}
