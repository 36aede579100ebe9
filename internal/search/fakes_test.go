package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/placesfinder/placesfinder/internal/places"
)

type fakePage struct {
	body string
	err  error
}

// fakePlaces replays scripted text-search pages and serves details from a map.
type fakePlaces struct {
	mu          sync.Mutex
	pages       []fakePage
	details     map[string]places.PlaceDetail
	detailErrs  map[string]error
	detailStat  map[string]string
	detailDelay map[string]time.Duration

	searchCalls []url.Values
	detailCalls []string
	fields      []string
}

func newFakePlaces(pages ...fakePage) *fakePlaces {
	return &fakePlaces{
		pages:       pages,
		details:     map[string]places.PlaceDetail{},
		detailErrs:  map[string]error{},
		detailStat:  map[string]string{},
		detailDelay: map[string]time.Duration{},
	}
}

func (f *fakePlaces) TextSearch(ctx context.Context, params url.Values) (*places.TextSearchResponse, []byte, error) {
	f.mu.Lock()
	idx := len(f.searchCalls)
	f.searchCalls = append(f.searchCalls, params)
	f.mu.Unlock()

	if idx >= len(f.pages) {
		return nil, nil, fmt.Errorf("unexpected text search call %d", idx+1)
	}
	page := f.pages[idx]
	if page.err != nil {
		return nil, nil, page.err
	}

	var resp places.TextSearchResponse
	if err := json.Unmarshal([]byte(page.body), &resp); err != nil {
		return nil, nil, err
	}
	return &resp, []byte(page.body), nil
}

func (f *fakePlaces) Details(ctx context.Context, placeID, fields string) (*places.DetailsResponse, error) {
	f.mu.Lock()
	f.detailCalls = append(f.detailCalls, placeID)
	f.fields = append(f.fields, fields)
	delay := f.detailDelay[placeID]
	err := f.detailErrs[placeID]
	detail := f.details[placeID]
	status := f.detailStat[placeID]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if status != "" {
		return &places.DetailsResponse{Status: status}, nil
	}
	return &places.DetailsResponse{Status: places.StatusOK, Result: detail}, nil
}

func (f *fakePlaces) searchCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searchCalls)
}

func (f *fakePlaces) detailCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.detailCalls)
}

// recordingWaiter records requested delays without sleeping.
type recordingWaiter struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (w *recordingWaiter) Wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delays = append(w.delays, d)
	return w.err
}

type MockHistoryRecorder struct {
	mock.Mock
}

func (m *MockHistoryRecorder) RecordRun(ctx context.Context, run RunRecord) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

type MockDetailCache struct {
	mock.Mock
}

func (m *MockDetailCache) GetDetail(ctx context.Context, placeID string) (*places.PlaceDetail, bool, error) {
	args := m.Called(ctx, placeID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*places.PlaceDetail), args.Bool(1), args.Error(2)
}

func (m *MockDetailCache) SetDetail(ctx context.Context, placeID string, detail places.PlaceDetail) error {
	args := m.Called(ctx, placeID, detail)
	return args.Error(0)
}

// countingObserver tallies pipeline events.
type countingObserver struct {
	mu       sync.Mutex
	pages    int
	details  int
	cached   int
	finished int
	lastErr  error
}

func (o *countingObserver) PageFetched(_ context.Context, _, _ int, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pages++
}

func (o *countingObserver) DetailLookedUp(_ context.Context, cached bool, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.details++
	if cached {
		o.cached++
	}
}

func (o *countingObserver) SearchFinished(_ context.Context, _ int, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished++
	o.lastErr = err
}

const (
	coffeePageNoToken = `{
		"status": "OK",
		"results": [
			{"place_id": "A", "name": "Cafe A", "formatted_address": "1 Main St", "rating": 4.2, "user_ratings_total": 10,
			 "geometry": {"location": {"lat": 37.7941, "lng": -122.3951}}, "types": ["cafe", "food"]},
			{"place_id": "B", "name": "Cafe B", "formatted_address": "2 Main St",
			 "geometry": {"location": {"lat": 37.79, "lng": -122.4}}, "types": ["cafe"]}
		]
	}`
	coffeePageWithToken = `{
		"status": "OK",
		"next_page_token": "TOKEN_2",
		"results": [
			{"place_id": "A", "name": "Cafe A", "geometry": {"location": {"lat": 1, "lng": 2}}, "types": []},
			{"place_id": "B", "name": "Cafe B", "geometry": {"location": {"lat": 3, "lng": 4}}, "types": []}
		]
	}`
	coffeeLastPage = `{
		"status": "OK",
		"results": [
			{"place_id": "C", "name": "Cafe C", "geometry": {"location": {"lat": 5, "lng": 6}}, "types": []}
		]
	}`
)

func coffeeRequest() Request {
	return Request{Query: "coffee shops", Bias: DefaultBiasPoint, Radius: DefaultRadius}
}
