package webhandler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	SessionCookieName = "placesfinder_session"
	sessionContextKey = "session_id"
)

// SessionMiddleware makes sure every request carries a session id cookie
func SessionMiddleware(ttl time.Duration, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(SessionCookieName)
		if err != nil || uuid.Validate(sessionID) != nil {
			sessionID = uuid.New().String()
		}

		http.SetCookie(c.Writer, &http.Cookie{
			Name:     SessionCookieName,
			Value:    sessionID,
			Path:     "/",
			MaxAge:   int(ttl.Seconds()),
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})

		c.Set(sessionContextKey, sessionID)
		c.Next()
	}
}

// SessionID returns the id set by SessionMiddleware
func SessionID(c *gin.Context) string {
	return c.GetString(sessionContextKey)
}
