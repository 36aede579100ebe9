package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placesfinder/placesfinder/internal/config"
	apperrors "github.com/placesfinder/placesfinder/internal/errors"
	"github.com/placesfinder/placesfinder/internal/search"
)

type stubRunner struct {
	got    search.Request
	result *search.Result
	err    error
}

func (s *stubRunner) Run(ctx context.Context, req search.Request) (*search.Result, error) {
	s.got = req
	return s.result, s.err
}

func (s *stubRunner) Configured() bool { return true }

func TestParseFlags_Defaults(t *testing.T) {
	opts, err := parseFlags([]string{"-query", "pizza"}, config.Default())
	require.NoError(t, err)

	assert.Equal(t, "pizza", opts.query)
	assert.Equal(t, 37.7937, opts.lat)
	assert.Equal(t, -122.3965, opts.lng)
	assert.Equal(t, 5000, opts.radius)
	assert.Equal(t, "places_results.csv", opts.out)
}

func TestParseFlags_Invalid(t *testing.T) {
	_, err := parseFlags([]string{"-radius", "lots"}, config.Default())
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))
}

func TestExecute_WritesCSV(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.csv")
	runner := &stubRunner{result: &search.Result{
		Pages: 2,
		Rows:  []search.ResultRow{{Name: "Pizzeria", PlaceID: "p1"}},
	}}
	var stdout bytes.Buffer

	err := execute(context.Background(), runner, options{
		query: "pizza", lat: 40.7128, lng: -74.006, radius: 3000, out: out,
	}, &stdout)
	require.NoError(t, err)

	assert.Equal(t, search.Request{
		Query:  "pizza",
		Bias:   search.BiasPoint{Latitude: 40.7128, Longitude: -74.006},
		Radius: 3000,
	}, runner.got)
	assert.Contains(t, stdout.String(), "Found 1 places across 2 page(s) near 40.7128,-74.006")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Pizzeria")
}

func TestExecute_InvalidBias(t *testing.T) {
	runner := &stubRunner{}

	err := execute(context.Background(), runner, options{query: "pizza", lat: 120, radius: 5000}, &bytes.Buffer{})

	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))
	assert.Empty(t, runner.got.Query)
}

func TestExecute_SearchErrorWritesNothing(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.csv")
	runner := &stubRunner{err: apperrors.NewConfigurationError("GOOGLE_PLACES_API_KEY", "API key not found")}

	err := execute(context.Background(), runner, options{query: "pizza", radius: 5000, out: out}, &bytes.Buffer{})

	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfiguration))
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}
