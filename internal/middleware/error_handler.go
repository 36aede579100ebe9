package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	apperrors "github.com/placesfinder/placesfinder/internal/errors"
	"github.com/placesfinder/placesfinder/internal/telemetry"
)

// ErrorResponse is the JSON body written for every failed API request
type ErrorResponse struct {
	Error         string              `json:"error"`
	Type          apperrors.ErrorType `json:"type"`
	Code          string              `json:"code"`
	Details       string              `json:"details,omitempty"`
	CorrelationID string              `json:"correlation_id,omitempty"`
}

// ErrorHandler turns errors attached with c.Error and recovered panics into
// JSON responses. Handlers report failures through Abort.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				ctx := c.Request.Context()
				telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
					"operation":   "error_handler_panic",
					"panic_value": fmt.Sprintf("%v", r),
					"stack_trace": string(debug.Stack()),
					"service":     "middleware",
				}).Error("Panic recovered in HTTP handler")

				err := apperrors.NewInternalError(fmt.Sprintf("Panic in handler: %v", r), nil)
				writeError(c, err)
				c.Abort()
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		writeError(c, c.Errors.Last().Err)
	}
}

// Abort records err for ErrorHandler and stops the handler chain
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func writeError(c *gin.Context, err error) {
	correlationID := telemetry.GetCorrelationID(c.Request.Context())

	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.NewInternalError("An unexpected error occurred", err)
	}
	if appErr.CorrelationID == "" {
		appErr = appErr.WithCorrelationID(correlationID)
	}

	logError(c, appErr)

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}

	c.JSON(status, ErrorResponse{
		Error:         UserMessage(appErr),
		Type:          appErr.Type,
		Code:          appErr.Code,
		Details:       appErr.Details,
		CorrelationID: appErr.CorrelationID,
	})
}

func logError(c *gin.Context, appErr *apperrors.AppError) {
	logger := telemetry.GetContextualLogger(c.Request.Context()).WithFields(map[string]interface{}{
		"operation":  "error_handler_log",
		"error_type": string(appErr.Type),
		"error_code": appErr.Code,
		"path":       c.Request.URL.Path,
		"service":    "middleware",
	})

	for k, v := range appErr.Metadata {
		logger = logger.WithField(k, v)
	}
	if appErr.Cause != nil {
		logger = logger.WithField("cause", appErr.Cause.Error())
	}

	switch appErr.Type {
	case apperrors.ErrorTypeValidation, apperrors.ErrorTypeConfiguration, apperrors.ErrorTypeRateLimit:
		logger.Warn(appErr.Message)
	case apperrors.ErrorTypeNotFound:
		logger.Info(appErr.Message)
	default:
		logger.Error(appErr.Message)
	}
}

// UserMessage picks the text shown to the user for each error kind
func UserMessage(appErr *apperrors.AppError) string {
	switch appErr.Type {
	case apperrors.ErrorTypeConfiguration, apperrors.ErrorTypeValidation, apperrors.ErrorTypeNotFound:
		return appErr.Message
	case apperrors.ErrorTypeFetch:
		return withCause("Error fetching places", appErr)
	case apperrors.ErrorTypeEnrichment:
		return withCause("Error fetching place details", appErr)
	case apperrors.ErrorTypeRateLimit:
		return "You're searching too quickly. Please wait a moment and try again."
	case apperrors.ErrorTypeTimeout:
		return "The request timed out. Please try again."
	case apperrors.ErrorTypeExternal:
		return "External service is temporarily unavailable. Please try again later."
	default:
		return "Something went wrong. Please try again later."
	}
}

func withCause(prefix string, appErr *apperrors.AppError) string {
	if appErr.Details != "" {
		return fmt.Sprintf("%s: %s", prefix, appErr.Details)
	}
	return fmt.Sprintf("%s: %s", prefix, appErr.Message)
}
