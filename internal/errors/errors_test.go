package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppError(t *testing.T) {
	appErr := NewAppError(ErrorTypeValidation, "INVALID_INPUT", "Invalid input provided")

	assert.Equal(t, ErrorTypeValidation, appErr.Type)
	assert.Equal(t, "INVALID_INPUT", appErr.Code)
	assert.Equal(t, "Invalid input provided", appErr.Message)
	assert.WithinDuration(t, time.Now(), appErr.Timestamp, time.Second)
	assert.Nil(t, appErr.Cause)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}

func TestNewAppErrorWithCause(t *testing.T) {
	originalErr := errors.New("connection reset")

	appErr := NewAppErrorWithCause(ErrorTypeFetch, "FETCH_ERROR", "Text search failed", originalErr)

	assert.Equal(t, originalErr, appErr.Cause)
	assert.Equal(t, originalErr.Error(), appErr.Details)
	assert.Equal(t, http.StatusBadGateway, appErr.HTTPStatus)
}

func TestAppError_WithMethods(t *testing.T) {
	appErr := NewAppErrorWithCause(ErrorTypeInternal, "WRAPPED_ERROR", "An error occurred", errors.New("boom")).
		WithCorrelationID("test-correlation-id").
		WithMetadata("context", "test").
		WithDetails("additional details").
		WithHTTPStatus(http.StatusTeapot)

	assert.Equal(t, "test-correlation-id", appErr.CorrelationID)
	assert.Equal(t, "test", appErr.Metadata["context"])
	assert.Equal(t, "additional details", appErr.Details)
	assert.Equal(t, http.StatusTeapot, appErr.HTTPStatus)
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without details",
			appErr:   &AppError{Code: "INVALID_INPUT", Message: "Invalid input provided"},
			expected: "INVALID_INPUT: Invalid input provided",
		},
		{
			name:     "with details",
			appErr:   &AppError{Code: "FETCH_ERROR", Message: "Text search failed on page 1", Details: "EOF"},
			expected: "FETCH_ERROR: Text search failed on page 1 - EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestGetDefaultHTTPStatus(t *testing.T) {
	tests := []struct {
		name         string
		errorType    ErrorType
		expectedCode int
	}{
		{"Validation error", ErrorTypeValidation, http.StatusBadRequest},
		{"Configuration error", ErrorTypeConfiguration, http.StatusServiceUnavailable},
		{"Not found error", ErrorTypeNotFound, http.StatusNotFound},
		{"Rate limit error", ErrorTypeRateLimit, http.StatusTooManyRequests},
		{"Fetch error", ErrorTypeFetch, http.StatusBadGateway},
		{"Enrichment error", ErrorTypeEnrichment, http.StatusBadGateway},
		{"External error", ErrorTypeExternal, http.StatusBadGateway},
		{"Timeout error", ErrorTypeTimeout, http.StatusGatewayTimeout},
		{"Internal error", ErrorTypeInternal, http.StatusInternalServerError},
		{"Unknown error", ErrorType("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedCode, getDefaultHTTPStatus(tt.errorType))
		})
	}
}

func TestStageConstructors(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")

	fetchErr := NewFetchError(2, cause)
	assert.Equal(t, ErrorTypeFetch, fetchErr.Type)
	assert.Equal(t, "FETCH_ERROR", fetchErr.Code)
	assert.Equal(t, "Text search failed on page 2", fetchErr.Message)
	assert.Equal(t, 2, fetchErr.Metadata["page"])
	assert.ErrorIs(t, fetchErr, cause)

	enrichErr := NewEnrichmentError("ChIJ123", cause)
	assert.Equal(t, ErrorTypeEnrichment, enrichErr.Type)
	assert.Equal(t, "Detail lookup failed for place ChIJ123", enrichErr.Message)
	assert.Equal(t, "ChIJ123", enrichErr.Metadata["place_id"])

	cfgErr := NewConfigurationError("GOOGLE_PLACES_API_KEY", "API key not found")
	assert.Equal(t, ErrorTypeConfiguration, cfgErr.Type)
	assert.Equal(t, "GOOGLE_PLACES_API_KEY", cfgErr.Metadata["setting"])
	assert.Nil(t, cfgErr.Cause)
}

func TestOtherConstructors(t *testing.T) {
	cause := errors.New("connection refused")

	notFound := NewNotFoundError("Search result")
	assert.Equal(t, "Search result not found", notFound.Message)

	rate := NewRateLimitError(5, "2s")
	assert.Equal(t, 5, rate.Metadata["limit"])
	assert.Equal(t, "2s", rate.Metadata["window"])

	db := NewDatabaseError("INSERT", cause)
	assert.Equal(t, "Database operation failed: INSERT", db.Message)

	cacheErr := NewCacheError("GET", cause)
	assert.Equal(t, "Cache operation failed: GET", cacheErr.Message)

	timeout := NewTimeoutError("text search", 30*time.Second)
	assert.Equal(t, "30s", timeout.Metadata["timeout"])

	external := NewExternalError("google-places", "details", cause)
	assert.Equal(t, "google-places", external.Metadata["service"])
	assert.Equal(t, "details", external.Metadata["operation"])

	internal := NewInternalError("Unexpected", cause)
	assert.Equal(t, cause, internal.Cause)
}

func TestIsErrorType(t *testing.T) {
	appErr := NewValidationError("query", "Please enter a search query")

	assert.True(t, IsErrorType(appErr, ErrorTypeValidation))
	assert.False(t, IsErrorType(appErr, ErrorTypeFetch))
	assert.False(t, IsErrorType(errors.New("regular error"), ErrorTypeValidation))

	wrapped := fmt.Errorf("handler: %w", appErr)
	assert.True(t, IsErrorType(wrapped, ErrorTypeValidation))
}

func TestGetErrorType(t *testing.T) {
	errorType, ok := GetErrorType(NewFetchError(1, nil))
	assert.True(t, ok)
	assert.Equal(t, ErrorTypeFetch, errorType)

	errorType, ok = GetErrorType(errors.New("regular error"))
	assert.False(t, ok)
	assert.Equal(t, ErrorType(""), errorType)
}

func TestGetCorrelationID(t *testing.T) {
	appErr := NewInternalError("boom", nil).WithCorrelationID("abc")
	assert.Equal(t, "abc", GetCorrelationID(appErr))
	assert.Empty(t, GetCorrelationID(NewInternalError("boom", nil)))
	assert.Empty(t, GetCorrelationID(errors.New("regular error")))
}

func TestAppError_ChainedErrors(t *testing.T) {
	originalErr := errors.New("database connection failed")
	middleErr := NewDatabaseError("SELECT", originalErr)
	finalErr := NewInternalError("Service unavailable", middleErr)

	assert.True(t, errors.Is(finalErr, originalErr))
	assert.True(t, errors.Is(finalErr, middleErr))
	assert.Equal(t, middleErr, errors.Unwrap(finalErr))
}

func TestAppError_ToJSON(t *testing.T) {
	appErr := NewEnrichmentError("ChIJ123", errors.New("EOF")).WithCorrelationID("cid")

	data, err := appErr.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"enrichment"`)
	assert.Contains(t, string(data), `"correlation_id":"cid"`)
	assert.NotContains(t, string(data), "Cause")
}
