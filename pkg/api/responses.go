package api

import "github.com/calledit/calledit-server/pkg/sweeper"

// HealthCheck is one component's entry in the health checks map.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version"`
	Checks  map[string]HealthCheck `json:"checks"`
}

// ReadyResponse is returned by GET /readyz.
type ReadyResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// StatusResponse is returned by GET /statusz.
type StatusResponse struct {
	App             string          `json:"app"`
	Version         string          `json:"version"`
	RegisteredUsers int             `json:"registered_users"`
	ActiveSessions  int             `json:"active_sessions"`
	QueueDepth      int             `json:"queue_depth"`
	Sweeper         *sweeper.Health `json:"sweeper,omitempty"`
}
