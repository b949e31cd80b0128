package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lfreyesc23-dotcom/OsitosLua/internal/logging"
)

// OptionalAuth identifies the caller when a valid bearer token is present and
// otherwise lets the request through as a guest. A bad token is not an error.
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if strings.TrimSpace(header) == "" {
			c.Next()
			return
		}

		id, err := ParseBearer(header, secret)
		if err != nil {
			logging.FromContext(c.Request.Context(), nil).Named("auth").
				Debug("ignoring invalid token, continuing as guest", zap.Error(err))
			c.Next()
			return
		}

		setIdentity(c, id)
		c.Next()
	}
}
