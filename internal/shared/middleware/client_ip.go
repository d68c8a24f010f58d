package middleware

import (
	"library-lending/internal/shared/utils"

	"github.com/gin-gonic/gin"
)

// ClientIPMiddleware stores the caller address under "client_ip" for the request logger.
func ClientIPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("client_ip", utils.ExtractClientIP(c))
		c.Next()
	}
}
