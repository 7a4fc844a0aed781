package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimit bounds a route by client IP. Limiter failures let the request
// through: the webhook must not drop legitimate gateway notifications
// because redis is unreachable.
func (s *Server) RateLimit(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		key := route + ":" + c.ClientIP()
		allowed, err := s.limiter.Allow(c.Request.Context(), key)
		if err != nil {
			s.log.Warn("rate limiter unavailable", zap.String("route", route), zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			AbortWithError(c, ErrTooManyRequests)
			return
		}

		c.Next()
	}
}
