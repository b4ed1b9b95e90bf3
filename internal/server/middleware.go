package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	logx "github.com/docqa-assistant/server/pkg/logger"
)

const sessionContextKey = "sessionID"

// requestLogger logs one line per request through zerolog.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := logx.Info()
		if status >= http.StatusInternalServerError {
			ev = logx.Error()
		} else if status >= http.StatusBadRequest {
			ev = logx.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("sessionID", c.GetString(sessionContextKey)).
			Msg("http request")
	}
}

// sessionCookie attaches a session id to every request, issuing a new one when
// the cookie is missing or malformed. The cookie has no Max-Age so it ends with
// the browser session; the store's TTL bounds it on the server side.
func sessionCookie(name string, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(name)
		if err != nil || !validSessionID(id) {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(name, id, 0, "/", "", secure, true)
			logx.Debug().Str("sessionID", id).Msg("session created")
		}
		c.Set(sessionContextKey, id)
		c.Next()
	}
}

func validSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionContextKey)
}
