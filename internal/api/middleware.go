package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/FOCUS1407/gestion-immobiliere/internal/services"
)

const actorKey = "actor"

// AccessLog writes one structured line per request.
func AccessLog(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		}
		if actor := currentActor(c); actor != nil {
			fields["user_id"] = actor.User.ID
		}
		entry := logger.WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request served")
		}
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// RequireAuth resolves the bearer token to an actor.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication credentials were not provided"})
			return
		}
		claims, err := h.tokens.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		actor, err := h.services.Accounts.ResolveActor(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
				return
			}
			h.respondError(c, err)
			c.Abort()
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// passwordChangeRoutes stay reachable while a temporary password is in use.
var passwordChangeRoutes = map[string]bool{
	http.MethodGet + " /api/auth/me":               true,
	http.MethodPost + " /api/auth/change-password": true,
}

// RequirePasswordChanged blocks accounts that still hold a temporary password.
func (h *Handler) RequirePasswordChanged() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := currentActor(c)
		if actor != nil && actor.User.MustChangePassword && !passwordChangeRoutes[c.Request.Method+" "+c.FullPath()] {
			h.respondError(c, services.ErrPasswordChangeRequired)
			c.Abort()
			return
		}
		c.Next()
	}
}

func currentActor(c *gin.Context) *services.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil
	}
	actor, _ := v.(*services.Actor)
	return actor
}
