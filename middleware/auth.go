package middleware

import (
	"net/http"
	"strings"

	"quizduel/services"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware requires a valid bearer token and stores the caller as
// "user_id" and "display_name".
func AuthMiddleware(tokens services.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required", "code": services.CodeUnauthorized})
			return
		}

		identity, err := tokens.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token", "code": services.CodeUnauthorized})
			return
		}

		c.Set("user_id", identity.UserID)
		c.Set("display_name", identity.DisplayName)
		c.Next()
	}
}
