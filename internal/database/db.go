package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/placesfinder/placesfinder/internal/telemetry"
)

type DB struct {
	*sql.DB
}

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the lib/pq connection string.
func (c Config) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.DBName,
		sslMode,
	)
}

// NewConnection opens a plain Postgres connection pool
func NewConnection(ctx context.Context, config Config) (*DB, error) {
	logger := connectionLogger(ctx, config, "database_connection")
	logger.Info("Establishing database connection")

	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		logger.WithError(err).Error("Failed to open database connection")
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return finishConnection(ctx, db, logger)
}

// NewInstrumentedConnection opens a Postgres connection pool traced with otelsql
func NewInstrumentedConnection(ctx context.Context, config Config) (*DB, error) {
	logger := connectionLogger(ctx, config, "instrumented_database_connection").
		WithField("instrumentation", "opentelemetry")
	logger.Info("Establishing instrumented database connection")

	db, err := telemetry.InstrumentDatabase("postgres", config.DSN())
	if err != nil {
		logger.WithError(err).Error("Failed to open instrumented database connection")
		return nil, err
	}

	return finishConnection(ctx, db, logger)
}

func connectionLogger(ctx context.Context, config Config, operation string) *telemetry.ContextualLogger {
	return telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"host":      config.Host,
		"port":      config.Port,
		"database":  config.DBName,
		"ssl_mode":  config.SSLMode,
		"operation": operation,
	})
}

func finishConnection(ctx context.Context, db *sql.DB, logger *telemetry.ContextualLogger) (*DB, error) {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		logger.WithError(err).Error("Failed to ping database")
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established successfully")
	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

func (db *DB) Health(ctx context.Context) error {
	err := db.PingContext(ctx)
	if err != nil {
		telemetry.GetContextualLogger(ctx).WithField("operation", "database_health_check").
			WithError(err).Error("Database health check failed")
	}
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS search_runs (
	id             UUID PRIMARY KEY,
	query          TEXT NOT NULL,
	latitude       DOUBLE PRECISION NOT NULL,
	longitude      DOUBLE PRECISION NOT NULL,
	radius         INTEGER NOT NULL,
	pages          INTEGER NOT NULL DEFAULT 0,
	row_count      INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT '',
	duration_ms    BIGINT NOT NULL DEFAULT 0,
	correlation_id TEXT NOT NULL DEFAULT '',
	metadata       JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_search_runs_created_at ON search_runs (created_at DESC);
`

// EnsureSchema creates the search history table if missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
