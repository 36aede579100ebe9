package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/placesfinder/placesfinder/internal/errors"
	"github.com/placesfinder/placesfinder/internal/places"
	"github.com/placesfinder/placesfinder/internal/telemetry"
)

// TextSearcher issues one text-search call.
type TextSearcher interface {
	TextSearch(ctx context.Context, params url.Values) (*places.TextSearchResponse, []byte, error)
}

// FetchResult is the accumulated output of a paginated search.
type FetchResult struct {
	Summaries []places.PlaceSummary
	Pages     int
	FirstPage json.RawMessage
}

// Fetcher runs the initial text search and follows page tokens until none is
// returned. A non-OK API status on a continuation page ends pagination and
// keeps the earlier pages; any other failure discards everything gathered.
type Fetcher struct {
	api        TextSearcher
	apiKey     string
	waiter     Waiter
	tokenDelay time.Duration
	maxPages   int
	observer   Observer
	tracer     trace.Tracer
}

func (f *Fetcher) FetchAll(ctx context.Context, req Request) (*FetchResult, error) {
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "fetch_all",
		"service":   "search",
		"query":     req.Query,
	})

	result := &FetchResult{Summaries: []places.PlaceSummary{}}
	params := req.InitialParams(f.apiKey)

	for page := 1; ; page++ {
		resp, raw, err := f.fetchPage(ctx, page, params)
		if err != nil {
			var apiErr *places.APIError
			if page > 1 && errors.As(err, &apiErr) {
				logger.WithFields(map[string]interface{}{
					"page":   page,
					"status": apiErr.Status,
				}).Warn("Continuation page rejected, keeping earlier pages")
				break
			}
			logger.WithField("page", page).WithError(err).Warn("Text search page failed, discarding partial results")
			return nil, err
		}

		if page == 1 {
			result.FirstPage = json.RawMessage(raw)
		}
		result.Summaries = append(result.Summaries, resp.Results...)
		result.Pages = page

		if resp.NextPageToken == "" {
			break
		}
		if f.maxPages > 0 && page >= f.maxPages {
			logger.WithField("max_pages", f.maxPages).Info("Page limit reached, ignoring next page token")
			break
		}

		// A fresh token is rejected until it activates server side.
		if err := f.waiter.Wait(ctx, f.tokenDelay); err != nil {
			return nil, apperrors.NewFetchError(page+1, err)
		}
		params = ContinuationParams(resp.NextPageToken, f.apiKey)
	}

	logger.WithFields(map[string]interface{}{
		"pages":   result.Pages,
		"results": len(result.Summaries),
	}).Info("Text search completed")

	return result, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, page int, params url.Values) (*places.TextSearchResponse, []byte, error) {
	ctx, span := f.tracer.Start(ctx, "search.fetch_page",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int("search.page", page),
			attribute.Bool("search.continuation", params.Has("pagetoken")),
		),
	)
	defer span.End()

	start := time.Now()
	resp, raw, err := f.api.TextSearch(ctx, params)
	if err == nil && resp == nil {
		err = apperrors.NewInternalError("empty text search response", nil)
	}

	results := 0
	if err == nil {
		results = len(resp.Results)
	}
	f.observer.PageFetched(ctx, page, results, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, apperrors.NewFetchError(page, err)
	}

	span.SetAttributes(attribute.Int("search.results", results))
	return resp, raw, nil
}
