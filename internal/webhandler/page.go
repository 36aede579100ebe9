package webhandler

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/placesfinder/placesfinder/internal/errors"
	"github.com/placesfinder/placesfinder/internal/export"
	"github.com/placesfinder/placesfinder/internal/middleware"
	"github.com/placesfinder/placesfinder/internal/search"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type pageData struct {
	Session          SessionView
	Columns          []string
	MinRadius        search.Radius
	MaxRadius        search.Radius
	RadiusStep       search.Radius
	ExportFileName   string
	APIKeyConfigured bool
	APIKeyStatus     string
}

// HandleIndex renders the map page for the caller's session
func (h *Handler) HandleIndex(c *gin.Context) {
	session := h.stateManager.GetSession(c.Request.Context(), SessionID(c))
	view := h.view(session)

	data := pageData{
		Session:          view,
		Columns:          export.Columns,
		MinRadius:        search.MinRadius,
		MaxRadius:        search.MaxRadius,
		RadiusStep:       search.RadiusStep,
		ExportFileName:   export.FileName,
		APIKeyConfigured: view.APIKeyConfigured,
		APIKeyStatus:     view.APIKeyStatus,
	}

	var buf bytes.Buffer
	if err := h.page.Execute(&buf, data); err != nil {
		middleware.Abort(c, apperrors.NewInternalError("Failed to render page", err))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
