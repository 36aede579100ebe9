package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/placesfinder/placesfinder/internal/config"
	apperrors "github.com/placesfinder/placesfinder/internal/errors"
	"github.com/placesfinder/placesfinder/internal/export"
	"github.com/placesfinder/placesfinder/internal/interfaces"
	"github.com/placesfinder/placesfinder/internal/middleware"
	"github.com/placesfinder/placesfinder/internal/places"
	"github.com/placesfinder/placesfinder/internal/search"
	"github.com/placesfinder/placesfinder/internal/telemetry"
)

type options struct {
	query  string
	lat    float64
	lng    float64
	radius int
	out    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok {
			fmt.Fprintln(os.Stderr, middleware.UserMessage(appErr))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func parseFlags(args []string, cfg config.Config) (options, error) {
	opts := options{}

	fs := flag.NewFlagSet("placesctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.query, "query", "", "text search query")
	fs.Float64Var(&opts.lat, "lat", cfg.Search.DefaultLat, "bias point latitude")
	fs.Float64Var(&opts.lng, "lng", cfg.Search.DefaultLng, "bias point longitude")
	fs.IntVar(&opts.radius, "radius", cfg.Search.DefaultRadius, "search radius in meters (1000-50000, step 1000)")
	fs.StringVar(&opts.out, "out", export.FileName, "CSV output path")

	if err := fs.Parse(args); err != nil {
		return opts, apperrors.NewValidationError("flags", err.Error())
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	_ = config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logCfg := telemetry.DefaultLogConfig()
	logCfg.Level = telemetry.ParseLogLevel(cfg.Log.Level)
	logCfg.Format = "text"
	logCfg.Output = "stderr"
	if err := telemetry.InitGlobalLogger(logCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	opts, err := parseFlags(args, cfg)
	if err != nil {
		return err
	}

	client := places.NewClient(cfg.Places.APIKey,
		places.WithBaseURL(cfg.Places.BaseURL),
		places.WithTimeout(cfg.Places.HTTPTimeout),
	)
	service := search.NewService(client, search.Config{
		APIKey:            cfg.Places.APIKey,
		TokenDelay:        cfg.Search.PageTokenDelay,
		MaxPages:          cfg.Search.MaxPages,
		DetailConcurrency: cfg.Search.DetailConcurrency,
		FailurePolicy:     search.FailurePolicy(cfg.Search.FailurePolicy),
	})

	return execute(ctx, service, opts, stdout)
}

func execute(ctx context.Context, runner interfaces.SearchRunnerInterface, opts options, stdout io.Writer) error {
	bias, err := search.NewBiasPoint(opts.lat, opts.lng)
	if err != nil {
		return err
	}

	result, err := runner.Run(ctx, search.Request{
		Query:  opts.query,
		Bias:   bias,
		Radius: search.Radius(opts.radius),
	})
	if err != nil {
		return err
	}

	if err := export.WriteFile(ctx, opts.out, result.Rows); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return apperrors.NewInternalError("Failed to write CSV", err).WithDetails(err.Error())
	}

	fmt.Fprintf(stdout, "Found %d places across %d page(s) near %s. Wrote %s\n",
		len(result.Rows), result.Pages, bias.String(), opts.out)
	return nil
}
