package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// BuyerIDKey is where the middleware stores the authenticated buyer id in
// the gin context.
const BuyerIDKey = "buyer_id"

// Middleware rejects requests without a valid bearer token and exposes the
// buyer id to downstream handlers.
func Middleware(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := svc.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(BuyerIDKey, claims.BuyerID)
		c.Next()
	}
}

// BuyerID returns the authenticated buyer id set by Middleware.
func BuyerID(c *gin.Context) string {
	return c.GetString(BuyerIDKey)
}
