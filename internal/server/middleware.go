package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/todosync/internal/transport/httpx"
)

const peerIDKey = "peerID"

// PeerIDFromContext returns the caller identity set by Auth.
func PeerIDFromContext(c *gin.Context) string {
	return c.GetString(peerIDKey)
}

// Auth checks the shared bearer token when one is configured and stores the
// caller's peer id from the X-Peer-ID header. The token gates access to the
// server as a whole; it does not identify users.
func Auth(token string) gin.HandlerFunc {
	token = strings.TrimSpace(token)
	return func(c *gin.Context) {
		if token != "" {
			h := strings.TrimSpace(c.GetHeader("Authorization"))
			if !strings.HasPrefix(strings.ToLower(h), "bearer ") || strings.TrimSpace(h[7:]) != token {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
		}
		c.Set(peerIDKey, strings.TrimSpace(c.GetHeader(httpx.PeerIDHeader)))
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start),
			"peer", PeerIDFromContext(c),
		)
	}
}
