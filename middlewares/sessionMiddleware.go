package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/uxlens/uxaudit_backend/config"
	"github.com/uxlens/uxaudit_backend/utils"
)

// SessionMiddleware resolves an optional API token to its session id. Requests
// without a token pass through; a token that no longer resolves is rejected.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		sessionId, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetSessionIdInContext(ctx, sessionId)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
