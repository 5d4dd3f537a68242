package middleware

import (
	"coopfin/internal/logs"

	"github.com/gin-gonic/gin"
)

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// ErrorHandler converts panics into a generic 500 so internal detail
// never reaches the caller.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logs.Logger.WithField("path", c.Request.URL.Path).Errorf("panic recovered: %v", err)
				c.AbortWithStatusJSON(500, gin.H{"success": false, "error": "Internal server error"})
			}
		}()
		c.Next()
	}
}
