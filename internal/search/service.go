package search

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/placesfinder/placesfinder/internal/errors"
	"github.com/placesfinder/placesfinder/internal/telemetry"
)

const (
	tracerName = "github.com/placesfinder/placesfinder/internal/search"

	apiKeySetting = "GOOGLE_PLACES_API_KEY"
)

// PlacesAPI is the upstream the pipeline talks to.
type PlacesAPI interface {
	TextSearcher
	DetailLookup
}

// RunRecord summarizes one executed search for history.
type RunRecord struct {
	Query     string
	Bias      BiasPoint
	Radius    Radius
	Pages     int
	Rows      int
	Status    string
	ErrorType string
	StartedAt time.Time
	Duration  time.Duration
}

const (
	RunStatusOK     = "ok"
	RunStatusFailed = "failed"
)

// HistoryRecorder persists executed searches.
type HistoryRecorder interface {
	RecordRun(ctx context.Context, run RunRecord) error
}

// Result is the outcome of a successful search.
type Result struct {
	Request  Request         `json:"request"`
	Rows     []ResultRow     `json:"rows"`
	Pages    int             `json:"pages"`
	RawFirst json.RawMessage `json:"raw_first_page,omitempty"`
	Elapsed  time.Duration   `json:"elapsed"`
}

// Config tunes the pipeline.
type Config struct {
	APIKey            string
	TokenDelay        time.Duration
	MaxPages          int
	DetailConcurrency int
	FailurePolicy     FailurePolicy
}

// Service runs the search pipeline: configuration check, request validation,
// paginated fetch and detail enrichment.
type Service struct {
	apiKey   string
	fetcher  *Fetcher
	enricher *Enricher
	history  HistoryRecorder
	observer Observer
	tracer   trace.Tracer

	waiter Waiter
	cache  DetailCache
}

type Option func(*Service)

func WithWaiter(w Waiter) Option {
	return func(s *Service) {
		s.waiter = w
	}
}

func WithDetailCache(c DetailCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

func WithHistory(h HistoryRecorder) Option {
	return func(s *Service) {
		s.history = h
	}
}

func NewService(api PlacesAPI, cfg Config, opts ...Option) *Service {
	s := &Service{
		apiKey:   cfg.APIKey,
		observer: nopObserver{},
		waiter:   TimerWaiter{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}

	concurrency := cfg.DetailConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	policy := cfg.FailurePolicy
	if policy != PolicyDegrade {
		policy = PolicyAbort
	}

	s.fetcher = &Fetcher{
		api:        api,
		apiKey:     cfg.APIKey,
		waiter:     s.waiter,
		tokenDelay: cfg.TokenDelay,
		maxPages:   cfg.MaxPages,
		observer:   s.observer,
		tracer:     s.tracer,
	}
	s.enricher = &Enricher{
		api:         api,
		cache:       s.cache,
		policy:      policy,
		concurrency: concurrency,
		observer:    s.observer,
		tracer:      s.tracer,
	}
	return s
}

// Configured reports whether an API key is available.
func (s *Service) Configured() bool {
	return s.apiKey != ""
}

// Run executes one search. Errors are AppErrors of type configuration,
// validation, fetch or enrichment. No HTTP call is made without an API key.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	ctx = telemetry.EnsureCorrelationID(ctx)
	ctx, span := s.tracer.Start(ctx, "search.run",
		trace.WithAttributes(
			attribute.String("search.query", req.Query),
			attribute.String("search.location", req.Bias.String()),
			attribute.Int("search.radius", int(req.Radius)),
		),
	)
	defer span.End()

	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "run_search",
		"service":   "search",
		"query":     req.Query,
		"location":  req.Bias.String(),
		"radius":    int(req.Radius),
	})

	start := time.Now()

	if !s.Configured() {
		err := apperrors.NewConfigurationError(apiKeySetting,
			"API key not found. Please set the GOOGLE_PLACES_API_KEY environment variable.")
		return nil, s.fail(ctx, span, err)
	}
	if err := req.Validate(); err != nil {
		return nil, s.fail(ctx, span, err)
	}

	logger.Info("Starting search")

	fetched, err := s.fetcher.FetchAll(ctx, req)
	if err != nil {
		s.record(ctx, req, 0, 0, start, err)
		return nil, s.fail(ctx, span, err)
	}

	rows, err := s.enricher.Enrich(ctx, fetched.Summaries)
	if err != nil {
		s.record(ctx, req, fetched.Pages, 0, start, err)
		return nil, s.fail(ctx, span, err)
	}

	elapsed := time.Since(start)
	s.observer.SearchFinished(ctx, len(rows), elapsed, nil)
	s.record(ctx, req, fetched.Pages, len(rows), start, nil)

	span.SetAttributes(
		attribute.Int("search.pages", fetched.Pages),
		attribute.Int("search.rows", len(rows)),
	)
	logger.WithFields(map[string]interface{}{
		"pages":       fetched.Pages,
		"rows":        len(rows),
		"duration_ms": elapsed.Milliseconds(),
	}).Info("Search completed")

	return &Result{
		Request:  req,
		Rows:     rows,
		Pages:    fetched.Pages,
		RawFirst: fetched.FirstPage,
		Elapsed:  elapsed,
	}, nil
}

func (s *Service) fail(ctx context.Context, span trace.Span, err error) error {
	if appErr, ok := apperrors.AsAppError(err); ok && appErr.CorrelationID == "" {
		appErr.WithCorrelationID(telemetry.GetCorrelationID(ctx))
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.observer.SearchFinished(ctx, 0, 0, err)

	errorType, _ := apperrors.GetErrorType(err)
	telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation":  "run_search",
		"service":    "search",
		"error_type": string(errorType),
	}).WithError(err).Warn("Search failed")

	return err
}

func (s *Service) record(ctx context.Context, req Request, pages, rows int, start time.Time, runErr error) {
	if s.history == nil {
		return
	}

	run := RunRecord{
		Query:     req.Query,
		Bias:      req.Bias,
		Radius:    req.Radius,
		Pages:     pages,
		Rows:      rows,
		Status:    RunStatusOK,
		StartedAt: start.UTC(),
		Duration:  time.Since(start),
	}
	if runErr != nil {
		run.Status = RunStatusFailed
		errorType, _ := apperrors.GetErrorType(runErr)
		run.ErrorType = string(errorType)
	}

	if err := s.history.RecordRun(ctx, run); err != nil {
		telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
			"operation": "record_run",
			"service":   "search",
		}).WithError(err).Warn("Failed to record search history")
	}
}
