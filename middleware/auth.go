package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"autoapply/services"
	"autoapply/utils"
)

// ContextClientKey holds the authenticated client name on the gin context.
const ContextClientKey = "client"

// RequireToken validates a bearer JWT. With a nil service every request
// passes, which is how the API runs when no secret is configured.
func RequireToken(jwtService *services.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtService == nil {
			c.Next()
			return
		}

		tokenString := c.GetHeader("Authorization")
		if tokenString == "" {
			utils.UnauthorizedError(c, "Authorization header required")
			return
		}
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			utils.LogDebug("token rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
			utils.UnauthorizedError(c, "Invalid or expired token")
			return
		}

		c.Set(ContextClientKey, claims.Client)
		c.Next()
	}
}
