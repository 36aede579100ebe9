package interfaces

import (
	"context"
	"time"

	"github.com/placesfinder/placesfinder/internal/database"
	"github.com/placesfinder/placesfinder/internal/search"
)

// SearchRunnerInterface runs the search pipeline for the web and CLI front ends
type SearchRunnerInterface interface {
	Run(ctx context.Context, req search.Request) (*search.Result, error)
	Configured() bool
}

// HistoryServiceInterface defines read and write access to the search history
type HistoryServiceInterface interface {
	search.HistoryRecorder
	RecentRuns(ctx context.Context, limit int) ([]database.SearchRun, error)
}

// SessionStoreInterface persists web sessions outside the process
type SessionStoreInterface interface {
	SetSession(ctx context.Context, sessionID string, data interface{}, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string, dest interface{}) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// ExportRecorderInterface is notified of every CSV download
type ExportRecorderInterface interface {
	RecordExport(rows int)
}
