package middleware

import (
	"time"

	"github.com/cz7host/frp/internal/logging"

	"github.com/gin-gonic/gin"
)

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Start timer
		start := time.Now()

		// Process request
		c.Next()

		// Log details
		latency := time.Since(start)
		logging.GetGlobalLogger().Info("[API] %s %s | %d | %s | %s | %s",
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			c.ClientIP(),
			c.GetString("RequestID"),
			latency,
		)
	}
}
