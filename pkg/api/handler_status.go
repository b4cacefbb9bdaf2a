package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/calledit/calledit-server/pkg/version"
)

// statuszHandler handles GET /statusz with a point-in-time snapshot of the
// event engine and, when enabled, the completion sweeper.
func (s *Server) statuszHandler(c *gin.Context) {
	resp := &StatusResponse{
		App:     version.AppName,
		Version: version.GitCommit,
	}

	if s.engine != nil {
		resp.RegisteredUsers = s.engine.RegisteredUsers()
		resp.ActiveSessions = s.engine.ActiveSessions()
		resp.QueueDepth = s.engine.QueueDepth()
	}

	if s.sweeper != nil {
		health := s.sweeper.Snapshot()
		resp.Sweeper = &health
	}

	c.JSON(http.StatusOK, resp)
}
