package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"spillwatch-worker/internal/logging"
)

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger())
	s.router.Use(corsMiddleware())
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		logging.Attach(c, uuid.NewString())

		c.Next()

		logging.Debug(c).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("Request processed")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
