package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const userIDHeader = "X-User-ID"

// Identity extracts the authenticated user id injected by the gateway.
// Token validation happens upstream; the relay only needs the identity.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(userIDHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}
