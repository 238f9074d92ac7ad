package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS opens the HTTP surface to browser clients. The gateway performs no
// authorization at this layer; identity binding happens in the AUTH handshake.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Origin validation example: modify according to your own domain/Token logic
func Origin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet && c.Request.URL.Path == "/ws" {
			// Example: you can validate Header/Cookie/JWT, etc.
			// token := c.GetHeader("X-Token")
			// if token == "" { c.AbortWithStatus(401); return }
		}
		c.Next()
	}
}
