package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIKeyHeader carries the caller's key
const APIKeyHeader = "X-API-Key"

// APIKey rejects requests whose X-API-Key is not one of keys. With no keys
// configured every request passes.
func APIKey(keys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(keys) == 0 {
			c.Next()
			return
		}
		presented := []byte(strings.TrimSpace(c.GetHeader(APIKeyHeader)))
		for _, k := range keys {
			if subtle.ConstantTimeCompare(presented, []byte(k)) == 1 {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized", "code": "UNAUTHORIZED"})
	}
}
