// Package api exposes the operational HTTP surface: liveness, readiness,
// and a status snapshot of the event engine and completion sweeper. Game
// traffic never passes through here; clients speak the encrypted TCP
// protocol served by pkg/server.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/calledit/calledit-server/pkg/events"
	"github.com/calledit/calledit-server/pkg/store"
	"github.com/calledit/calledit-server/pkg/sweeper"
)

const probeTimeout = 5 * time.Second

// Server is the ops HTTP server.
type Server struct {
	store      store.Store
	engine     *events.Engine
	sweeper    *sweeper.Sweeper
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer wires the ops routes. The sweeper may be nil when background
// settlement is disabled.
func NewServer(st store.Store, engine *events.Engine, sw *sweeper.Sweeper) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		store:   st,
		engine:  engine,
		sweeper: sw,
		router:  router,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.healthzHandler)
	s.router.GET("/readyz", s.readyzHandler)
	s.router.GET("/statusz", s.statuszHandler)
}

// Start blocks serving HTTP on addr until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	slog.Info("Shutting down ops HTTP server")
	return s.httpServer.Shutdown(ctx)
}
