package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/placesfinder/placesfinder/internal/database"
	apperrors "github.com/placesfinder/placesfinder/internal/errors"
	"github.com/placesfinder/placesfinder/internal/search"
	"github.com/placesfinder/placesfinder/internal/telemetry"
)

type SearchRun = database.SearchRun

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 200
)

// HistoryService stores executed searches in Postgres.
type HistoryService struct {
	db       *database.DB
	metadata database.RunMetadata
}

// NewHistoryService creates the service; metadata is attached to every recorded run.
func NewHistoryService(db *database.DB, metadata database.RunMetadata) *HistoryService {
	return &HistoryService{db: db, metadata: metadata}
}

func (s *HistoryService) RecordRun(ctx context.Context, run search.RunRecord) error {
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "record_run",
		"service":   "history",
		"query":     run.Query,
		"status":    run.Status,
	})

	id := uuid.New().String()
	query := `
		INSERT INTO search_runs (
			id, query, latitude, longitude, radius, pages, row_count,
			status, error_type, duration_ms, correlation_id, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.db.ExecContext(ctx, query,
		id, run.Query, run.Bias.Latitude, run.Bias.Longitude, int(run.Radius),
		run.Pages, run.Rows, run.Status, run.ErrorType, run.Duration.Milliseconds(),
		telemetry.GetCorrelationID(ctx), s.metadata, run.StartedAt,
	)
	if err != nil {
		logger.WithError(err).Error("Failed to record search run")
		return apperrors.NewDatabaseError("INSERT search_runs", err)
	}

	logger.WithField("run_id", id).Debug("Recorded search run")
	return nil
}

// RecentRuns returns the newest runs first.
func (s *HistoryService) RecentRuns(ctx context.Context, limit int) ([]SearchRun, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	query := `
		SELECT id, query, latitude, longitude, radius, pages, row_count,
		       status, error_type, duration_ms, correlation_id, metadata, created_at
		FROM search_runs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
			"operation": "recent_runs",
			"service":   "history",
		}).WithError(err).Error("Failed to query search history")
		return nil, apperrors.NewDatabaseError("SELECT search_runs", err)
	}
	defer rows.Close()

	runs := []SearchRun{}
	for rows.Next() {
		var run SearchRun
		if err := rows.Scan(
			&run.ID, &run.Query, &run.Latitude, &run.Longitude, &run.Radius,
			&run.Pages, &run.Rows, &run.Status, &run.ErrorType, &run.DurationMS,
			&run.CorrelationID, &run.Metadata, &run.CreatedAt,
		); err != nil {
			return nil, apperrors.NewDatabaseError("SCAN search_runs", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("SELECT search_runs", err)
	}

	return runs, nil
}
