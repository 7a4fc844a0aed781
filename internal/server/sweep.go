package server

import (
	"crypto/hmac"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RunSweep triggers the reconciliation passes. Guarded by a shared secret;
// when none is configured the endpoint fails closed rather than running
// unauthenticated.
func (s *Server) RunSweep(c *gin.Context) {
	if s.cfg.SweepSecret == "" {
		s.log.Error("sweep requested but SWEEP_SECRET is not configured")
		AbortWithError(c, ErrInternal)
		return
	}

	supplied := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !hmac.Equal([]byte(supplied), []byte(s.cfg.SweepSecret)) {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	report, err := s.sweeper.Run(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
