package search

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/placesfinder/placesfinder/internal/errors"
	"github.com/placesfinder/placesfinder/internal/places"
	"github.com/placesfinder/placesfinder/internal/telemetry"
)

// FailurePolicy decides what a failed detail lookup does to the search.
type FailurePolicy string

const (
	// PolicyAbort fails the whole search on the first failed lookup.
	PolicyAbort FailurePolicy = "abort"
	// PolicyDegrade keeps the row with empty phone and website.
	PolicyDegrade FailurePolicy = "degrade"
)

// DetailLookup fetches the detail fields of one place.
type DetailLookup interface {
	Details(ctx context.Context, placeID, fields string) (*places.DetailsResponse, error)
}

// DetailCache stores detail lookups by place ID. Errors are treated as misses.
type DetailCache interface {
	GetDetail(ctx context.Context, placeID string) (*places.PlaceDetail, bool, error)
	SetDetail(ctx context.Context, placeID string, detail places.PlaceDetail) error
}

// Enricher performs one detail lookup per summary and merges the results,
// preserving the summaries' order.
type Enricher struct {
	api         DetailLookup
	cache       DetailCache
	policy      FailurePolicy
	concurrency int
	observer    Observer
	tracer      trace.Tracer
}

func (e *Enricher) Enrich(ctx context.Context, summaries []places.PlaceSummary) ([]ResultRow, error) {
	ctx, span := e.tracer.Start(ctx, "search.enrich",
		trace.WithAttributes(
			attribute.Int("search.summaries", len(summaries)),
			attribute.String("search.failure_policy", string(e.policy)),
		),
	)
	defer span.End()

	rows := make([]ResultRow, len(summaries))
	if len(summaries) == 0 {
		return rows, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, summary := range summaries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			detail, err := e.lookup(gctx, summary.PlaceID)
			if err != nil {
				if e.policy != PolicyDegrade {
					return apperrors.NewEnrichmentError(summary.PlaceID, err)
				}
				telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
					"operation": "enrich",
					"service":   "search",
					"place_id":  summary.PlaceID,
				}).WithError(err).Warn("Detail lookup failed, keeping row without phone and website")
				detail = places.PlaceDetail{}
			}

			rows[i] = NewResultRow(summary, detail)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if _, ok := apperrors.AsAppError(err); !ok {
			err = apperrors.NewAppErrorWithCause(apperrors.ErrorTypeEnrichment, "ENRICHMENT_ERROR",
				"Detail enrichment was interrupted", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return rows, nil
}

func (e *Enricher) lookup(ctx context.Context, placeID string) (places.PlaceDetail, error) {
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "lookup_detail",
		"service":   "search",
		"place_id":  placeID,
	})

	start := time.Now()

	if e.cache != nil {
		cached, ok, err := e.cache.GetDetail(ctx, placeID)
		if err != nil {
			logger.WithError(err).Warn("Detail cache read failed")
		} else if ok && cached != nil {
			e.observer.DetailLookedUp(ctx, true, time.Since(start), nil)
			return *cached, nil
		}
	}

	resp, err := e.api.Details(ctx, placeID, places.DetailFields)
	if err == nil && resp == nil {
		err = apperrors.NewInternalError("empty details response", nil)
	}
	e.observer.DetailLookedUp(ctx, false, time.Since(start), err)
	if err != nil {
		return places.PlaceDetail{}, err
	}

	if e.cache != nil && (resp.Status == "" || resp.Status == places.StatusOK) {
		if err := e.cache.SetDetail(ctx, placeID, resp.Result); err != nil {
			logger.WithError(err).Warn("Detail cache write failed")
		}
	}

	return resp.Result, nil
}
