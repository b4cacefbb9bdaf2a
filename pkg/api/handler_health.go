package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/calledit/calledit-server/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusUnhealthy = "unhealthy"
)

// healthzHandler handles GET /healthz.
// Only the server's own components (store, event engine) are checked, so a
// wobbly external collaborator cannot make the orchestrator restart us.
func (s *Server) healthzHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	if err := s.store.Ping(reqCtx); err != nil {
		status = healthStatusUnhealthy
		checks["store"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
	} else {
		checks["store"] = HealthCheck{Status: healthStatusHealthy}
	}

	if s.engine != nil {
		checks["events"] = HealthCheck{Status: healthStatusHealthy}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, &HealthResponse{
		Status:  status,
		Version: version.GitCommit,
		Checks:  checks,
	})
}

// readyzHandler handles GET /readyz. Ready means the store answers a ping;
// everything else the server needs is in-process.
func (s *Server) readyzHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	if err := s.store.Ping(reqCtx); err != nil {
		c.JSON(http.StatusServiceUnavailable, &ReadyResponse{
			Status: "unavailable",
			Error:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, &ReadyResponse{Status: "ready"})
}
