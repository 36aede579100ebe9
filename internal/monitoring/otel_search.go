package monitoring

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	apperrors "github.com/placesfinder/placesfinder/internal/errors"
)

// SearchInstrumentation exports search pipeline events as OpenTelemetry metrics.
// It implements search.Observer.
type SearchInstrumentation struct {
	meter metric.Meter

	pagesTotal      metric.Int64Counter
	pageDuration    metric.Float64Histogram
	resultsTotal    metric.Int64Counter
	detailsTotal    metric.Int64Counter
	detailDuration  metric.Float64Histogram
	searchesTotal   metric.Int64Counter
	searchDuration  metric.Float64Histogram
	searchRowsCount metric.Int64Histogram
}

// NewSearchInstrumentation creates the search instruments on the global meter provider
func NewSearchInstrumentation() (*SearchInstrumentation, error) {
	return NewSearchInstrumentationWithMeter(
		otel.Meter(instrumentationName, metric.WithInstrumentationVersion(instrumentationVersion)),
	)
}

// NewSearchInstrumentationWithMeter creates the search instruments on the given meter
func NewSearchInstrumentationWithMeter(meter metric.Meter) (*SearchInstrumentation, error) {
	pagesTotal, err := meter.Int64Counter(
		"places_text_search_pages_total",
		metric.WithDescription("Total number of Text Search pages requested"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create places_text_search_pages_total counter: %w", err)
	}

	pageDuration, err := meter.Float64Histogram(
		"places_text_search_page_duration_seconds",
		metric.WithDescription("Text Search page latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create places_text_search_page_duration_seconds histogram: %w", err)
	}

	resultsTotal, err := meter.Int64Counter(
		"places_text_search_results_total",
		metric.WithDescription("Total number of place summaries returned"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create places_text_search_results_total counter: %w", err)
	}

	detailsTotal, err := meter.Int64Counter(
		"places_details_lookups_total",
		metric.WithDescription("Total number of Place Details lookups"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create places_details_lookups_total counter: %w", err)
	}

	detailDuration, err := meter.Float64Histogram(
		"places_details_duration_seconds",
		metric.WithDescription("Place Details latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create places_details_duration_seconds histogram: %w", err)
	}

	searchesTotal, err := meter.Int64Counter(
		"searches_total",
		metric.WithDescription("Total number of searches run"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create searches_total counter: %w", err)
	}

	searchDuration, err := meter.Float64Histogram(
		"search_duration_seconds",
		metric.WithDescription("End to end search duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2.5, 5, 10, 20, 30, 60),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search_duration_seconds histogram: %w", err)
	}

	searchRowsCount, err := meter.Int64Histogram(
		"search_rows",
		metric.WithDescription("Rows produced per successful search"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(0, 1, 10, 20, 40, 60),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search_rows histogram: %w", err)
	}

	return &SearchInstrumentation{
		meter:           meter,
		pagesTotal:      pagesTotal,
		pageDuration:    pageDuration,
		resultsTotal:    resultsTotal,
		detailsTotal:    detailsTotal,
		detailDuration:  detailDuration,
		searchesTotal:   searchesTotal,
		searchDuration:  searchDuration,
		searchRowsCount: searchRowsCount,
	}, nil
}

// PageFetched records one Text Search page
func (s *SearchInstrumentation) PageFetched(ctx context.Context, page, results int, elapsed time.Duration, err error) {
	attributes := append(errorAttributes(err), attribute.Bool("continuation", page > 1))

	s.pagesTotal.Add(ctx, 1, metric.WithAttributes(attributes...))
	s.pageDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attributes...))
	if err == nil {
		s.resultsTotal.Add(ctx, int64(results))
	}
}

// DetailLookedUp records one detail lookup, cached or not
func (s *SearchInstrumentation) DetailLookedUp(ctx context.Context, cached bool, elapsed time.Duration, err error) {
	source := "api"
	if cached {
		source = "cache"
	}
	attributes := append(errorAttributes(err), attribute.String("source", source))

	s.detailsTotal.Add(ctx, 1, metric.WithAttributes(attributes...))
	s.detailDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attributes...))
}

// SearchFinished records the outcome of a whole search
func (s *SearchInstrumentation) SearchFinished(ctx context.Context, rows int, elapsed time.Duration, err error) {
	attributes := errorAttributes(err)

	s.searchesTotal.Add(ctx, 1, metric.WithAttributes(attributes...))
	s.searchDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attributes...))
	if err == nil {
		s.searchRowsCount.Record(ctx, int64(rows))
	}
}

func errorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return []attribute.KeyValue{attribute.String("error", "false")}
	}

	errorType := apperrors.ErrorTypeInternal
	if t, ok := apperrors.GetErrorType(err); ok {
		errorType = t
	}
	return []attribute.KeyValue{
		attribute.String("error", "true"),
		attribute.String("error_type", string(errorType)),
	}
}
