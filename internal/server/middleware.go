package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rileyhilliard/boincwatch/internal/logger"
)

// Logger returns a gin middleware that logs one line per request.
func Logger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		line := "%s | %s | %s | %s | %d"
		args := []interface{}{c.Request.Method, path, c.ClientIP(), time.Since(start).Round(time.Microsecond), status}
		switch {
		case status >= 500:
			log.Error(line, args...)
		case status >= 400:
			log.Warn(line, args...)
		default:
			log.Debug(line, args...)
		}
	}
}

// CORS returns a permissive CORS middleware so a GUI served elsewhere can
// subscribe.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
