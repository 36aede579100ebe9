package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/placesfinder/placesfinder/internal/cache"
	"github.com/placesfinder/placesfinder/internal/config"
	"github.com/placesfinder/placesfinder/internal/database"
	"github.com/placesfinder/placesfinder/internal/monitoring"
	"github.com/placesfinder/placesfinder/internal/places"
	"github.com/placesfinder/placesfinder/internal/search"
	"github.com/placesfinder/placesfinder/internal/services"
	"github.com/placesfinder/placesfinder/internal/telemetry"
	"github.com/placesfinder/placesfinder/internal/webhandler"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "placesfinder: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	dotEnvErr := config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := telemetry.InitGlobalLogger(logConfig(cfg)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "startup",
		"service":   "server",
		"version":   version,
	})
	if dotEnvErr != nil {
		logger.WithError(dotEnvErr).Warn("Error loading .env file")
	}

	shutdownOTel, err := telemetry.InitializeOpenTelemetry(ctx, &telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		MetricInterval: 30 * time.Second,
	})
	if err != nil {
		return err
	}
	defer shutdownOTel()

	metrics := monitoring.NewMetricsCollector()
	health := monitoring.NewHealthChecker(cfg.Telemetry.ServiceName, version)
	health.RegisterPlacesKeyCheck("places_api_key", cfg.HasAPIKey)

	stateManager := webhandler.NewStateManager(cfg.Session.TTL,
		search.BiasPoint{Latitude: cfg.Search.DefaultLat, Longitude: cfg.Search.DefaultLng},
		search.Radius(cfg.Search.DefaultRadius))

	var searchOpts []search.Option

	if cfg.Redis.Enabled {
		redisService, err := cache.NewRedisService(ctx, &cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, continuing without detail cache and session persistence")
		} else {
			defer redisService.Close()
			searchOpts = append(searchOpts, search.WithDetailCache(cache.NewDetailCache(redisService, cfg.Redis.CacheTTL, metrics)))
			stateManager.SetStore(redisService)
			health.RegisterRedisCheck("redis", redisService)
		}
	}

	var history *services.HistoryService
	if cfg.DatabaseEnabled() {
		db, err := database.NewInstrumentedConnection(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
		history = services.NewHistoryService(db, database.RunMetadata{
			"environment": cfg.Environment,
			"version":     version,
		})
		searchOpts = append(searchOpts, search.WithHistory(history))
		health.RegisterDatabaseCheck("database", db)
	}

	searchInstrumentation, err := monitoring.NewSearchInstrumentation()
	if err != nil {
		return err
	}
	searchOpts = append(searchOpts, search.WithObserver(search.MultiObserver{metrics, searchInstrumentation}))

	client := places.NewClient(cfg.Places.APIKey,
		places.WithBaseURL(cfg.Places.BaseURL),
		places.WithTimeout(cfg.Places.HTTPTimeout),
	)
	searchService := search.NewService(client, search.Config{
		APIKey:            cfg.Places.APIKey,
		TokenDelay:        cfg.Search.PageTokenDelay,
		MaxPages:          cfg.Search.MaxPages,
		DetailConcurrency: cfg.Search.DetailConcurrency,
		FailurePolicy:     search.FailurePolicy(cfg.Search.FailurePolicy),
	}, searchOpts...)

	handler := webhandler.NewHandler(searchService, stateManager, cfg.Session.TTL)
	handler.SetExportRecorder(metrics)
	handler.SetSecureCookies(!cfg.IsDevelopment())
	if history != nil {
		handler.SetHistory(history)
	}

	app, err := newRouter(routerDeps{
		cfg:     cfg,
		handler: handler,
		metrics: metrics,
		health:  health,
	})
	if err != nil {
		return err
	}

	stateManager.StartCleanupRoutine(ctx, cfg.Session.CleanupInterval)
	app.limiter.StartCleanupRoutine(ctx, time.Minute, 10*time.Minute)

	if !cfg.HasAPIKey() {
		logger.Warn("API key not found. Please set the GOOGLE_PLACES_API_KEY environment variable.")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}

func logConfig(cfg config.Config) *telemetry.LogConfig {
	logCfg := telemetry.DefaultLogConfig()
	logCfg.Level = telemetry.ParseLogLevel(cfg.Log.Level)
	logCfg.Format = cfg.Log.Format
	logCfg.Output = cfg.Log.Output
	logCfg.Rotation = cfg.Log.Rotation
	logCfg.Service = cfg.Telemetry.ServiceName
	return logCfg
}
