package webhandler

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/placesfinder/placesfinder/internal/config"
	apperrors "github.com/placesfinder/placesfinder/internal/errors"
	"github.com/placesfinder/placesfinder/internal/export"
	"github.com/placesfinder/placesfinder/internal/interfaces"
	"github.com/placesfinder/placesfinder/internal/middleware"
	"github.com/placesfinder/placesfinder/internal/search"
	"github.com/placesfinder/placesfinder/internal/telemetry"
)

const (
	apiKeyLoaded  = "API key loaded"
	apiKeyMissing = "API key not found. Please set the " + config.APIKeyEnv + " environment variable."
)

type Handler struct {
	searcher      interfaces.SearchRunnerInterface
	stateManager  *StateManager
	history       interfaces.HistoryServiceInterface
	exports       interfaces.ExportRecorderInterface
	searchLimiter gin.HandlerFunc
	sessionTTL    time.Duration
	secureCookies bool
	page          *template.Template
}

func NewHandler(searcher interfaces.SearchRunnerInterface, stateManager *StateManager, sessionTTL time.Duration) *Handler {
	return &Handler{
		searcher:     searcher,
		stateManager: stateManager,
		sessionTTL:   sessionTTL,
		page:         pageTemplate,
	}
}

// SetHistory enables GET /api/history
func (h *Handler) SetHistory(history interfaces.HistoryServiceInterface) {
	h.history = history
}

// SetExportRecorder sets the collector notified of CSV downloads
func (h *Handler) SetExportRecorder(exports interfaces.ExportRecorderInterface) {
	h.exports = exports
}

// SetSearchLimiter guards POST /api/search
func (h *Handler) SetSearchLimiter(limiter gin.HandlerFunc) {
	h.searchLimiter = limiter
}

// SetSecureCookies marks the session cookie Secure
func (h *Handler) SetSecureCookies(secure bool) {
	h.secureCookies = secure
}

// RegisterRoutes mounts the page and the JSON API
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	group := router.Group("/", SessionMiddleware(h.sessionTTL, h.secureCookies))

	group.GET("/", h.HandleIndex)

	api := group.Group("/api")
	api.GET("/session", h.HandleSession)
	api.POST("/location", h.HandleLocation)
	api.POST("/radius", h.HandleRadius)
	if h.searchLimiter != nil {
		api.POST("/search", h.searchLimiter, h.HandleSearch)
	} else {
		api.POST("/search", h.HandleSearch)
	}
	api.GET("/export", h.HandleExport)
	api.GET("/history", h.HandleHistory)
}

// SessionView is the JSON shape of a session
type SessionView struct {
	SessionID        string           `json:"session_id"`
	Bias             search.BiasPoint `json:"bias"`
	Location         string           `json:"location"`
	Radius           search.Radius    `json:"radius"`
	OverlayRadius    float64          `json:"overlay_radius"`
	APIKeyConfigured bool             `json:"api_key_configured"`
	APIKeyStatus     string           `json:"api_key_status"`
	Result           *StoredResult    `json:"result,omitempty"`
}

func (h *Handler) view(session Session) SessionView {
	configured := h.searcher.Configured()
	return SessionView{
		SessionID:        session.ID,
		Bias:             session.Bias,
		Location:         session.Bias.String(),
		Radius:           session.Radius,
		OverlayRadius:    session.Radius.OverlayRadius(),
		APIKeyConfigured: configured,
		APIKeyStatus:     apiKeyStatus(configured),
		Result:           session.Result,
	}
}

func apiKeyStatus(configured bool) string {
	if configured {
		return apiKeyLoaded
	}
	return apiKeyMissing
}

func (h *Handler) HandleSession(c *gin.Context) {
	session := h.stateManager.GetSession(c.Request.Context(), SessionID(c))
	c.JSON(http.StatusOK, h.view(session))
}

type locationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// HandleLocation records a map click as the new bias point
func (h *Handler) HandleLocation(c *gin.Context) {
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, apperrors.NewValidationError("body", "Invalid request body").WithDetails(err.Error()))
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		middleware.Abort(c, apperrors.NewValidationError("location", "Both latitude and longitude are required"))
		return
	}

	bias, err := search.NewBiasPoint(*req.Latitude, *req.Longitude)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	session := h.stateManager.SetBias(c.Request.Context(), SessionID(c), bias)
	telemetry.GetContextualLogger(c.Request.Context()).WithFields(map[string]interface{}{
		"operation": "set_location",
		"service":   "webhandler",
		"location":  bias.String(),
	}).Debug("Bias point updated")

	c.JSON(http.StatusOK, h.view(session))
}

type radiusRequest struct {
	Radius *int `json:"radius"`
}

func (h *Handler) HandleRadius(c *gin.Context) {
	var req radiusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Radius == nil {
		middleware.Abort(c, apperrors.NewValidationError("radius", "Radius is required"))
		return
	}

	radius := search.Radius(*req.Radius)
	if err := radius.Validate(); err != nil {
		middleware.Abort(c, err)
		return
	}

	session := h.stateManager.SetRadius(c.Request.Context(), SessionID(c), radius)
	c.JSON(http.StatusOK, h.view(session))
}

type searchRequest struct {
	Query  string `json:"query"`
	Radius *int   `json:"radius,omitempty"`
}

// SearchResponse is returned by POST /api/search
type SearchResponse struct {
	Query       string             `json:"query"`
	Bias        search.BiasPoint   `json:"bias"`
	Location    string             `json:"location"`
	Radius      search.Radius      `json:"radius"`
	Pages       int                `json:"pages"`
	Count       int                `json:"count"`
	Rows        []search.ResultRow `json:"rows"`
	RawResponse interface{}        `json:"raw_response,omitempty"`
	ElapsedMS   int64              `json:"elapsed_ms"`
	DownloadURL string             `json:"download_url"`
}

// HandleSearch runs the pipeline with the session's bias point and radius
func (h *Handler) HandleSearch(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := SessionID(c)

	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, apperrors.NewValidationError("body", "Invalid request body").WithDetails(err.Error()))
		return
	}

	if req.Radius != nil {
		radius := search.Radius(*req.Radius)
		if err := radius.Validate(); err != nil {
			middleware.Abort(c, err)
			return
		}
		h.stateManager.SetRadius(ctx, sessionID, radius)
	}

	session := h.stateManager.GetSession(ctx, sessionID)
	result, err := h.searcher.Run(ctx, search.Request{
		Query:  strings.TrimSpace(req.Query),
		Bias:   session.Bias,
		Radius: session.Radius,
	})
	if err != nil {
		h.stateManager.SetResult(ctx, sessionID, nil)
		middleware.Abort(c, err)
		return
	}

	stored := &StoredResult{
		Query:       result.Request.Query,
		Bias:        result.Request.Bias,
		Radius:      result.Request.Radius,
		Pages:       result.Pages,
		Rows:        result.Rows,
		RawResponse: result.RawFirst,
		FinishedAt:  time.Now().UTC(),
	}
	h.stateManager.SetResult(ctx, sessionID, stored)

	resp := SearchResponse{
		Query:       stored.Query,
		Bias:        stored.Bias,
		Location:    stored.Bias.String(),
		Radius:      stored.Radius,
		Pages:       stored.Pages,
		Count:       len(stored.Rows),
		Rows:        stored.Rows,
		ElapsedMS:   result.Elapsed.Milliseconds(),
		DownloadURL: "/api/export",
	}
	if len(result.RawFirst) > 0 {
		resp.RawResponse = result.RawFirst
	}
	c.JSON(http.StatusOK, resp)
}

// HandleExport downloads the session's last result as places_results.csv
func (h *Handler) HandleExport(c *gin.Context) {
	session := h.stateManager.GetSession(c.Request.Context(), SessionID(c))
	if session.Result == nil {
		middleware.Abort(c, apperrors.NewAppError(apperrors.ErrorTypeNotFound, "NO_RESULTS",
			"No results to export. Run a search first."))
		return
	}

	data, err := export.CSVBytes(session.Result.Rows)
	if err != nil {
		middleware.Abort(c, apperrors.NewInternalError("Failed to render CSV", err))
		return
	}

	if h.exports != nil {
		h.exports.RecordExport(len(session.Result.Rows))
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.FileName))
	c.Data(http.StatusOK, export.ContentType, data)
}

// HandleHistory lists recent searches when history storage is configured
func (h *Handler) HandleHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false, "runs": []interface{}{}})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			middleware.Abort(c, apperrors.NewValidationError("limit", "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	runs, err := h.history.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true, "runs": runs})
}
