package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/cz7host/frp/internal/api/dto/common"

	"github.com/gin-gonic/gin"
)

// HeaderAPIKey carries the management API secret.
const HeaderAPIKey = "X-API-Key"

// APIKeyAuth rejects requests whose X-API-Key header does not match the
// configured secret.
func APIKeyAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderAPIKey)
		if subtle.ConstantTimeCompare([]byte(key), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				common.NewErrorResponse(common.ErrCodeUnauthorized, "Invalid API Key", nil))
			return
		}

		c.Next()
	}
}
