package router

import (
	"net/http"
	"strings"

	"github.com/Freedomtukun/free-yoga/internal/handlers"
	"github.com/Freedomtukun/free-yoga/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Identity reads the caller's user id from the header set by the upstream
// gateway. Requests without it are anonymous.
func Identity(header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(header))
		if utils.IsValidUserID(userID) {
			c.Set(handlers.UserKey, userID)
		}
		c.Next()
	}
}

// UserRequired rejects anonymous requests.
func UserRequired(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(handlers.UserKey) == "" {
			log.Debug("Rejecting anonymous request", zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "sign in to see your practice history"})
			return
		}
		c.Next()
	}
}
