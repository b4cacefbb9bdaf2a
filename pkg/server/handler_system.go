package server

import (
	"context"
	"log/slog"
)

// pingHandler answers liveness probes.
func (s *Server) pingHandler(_ context.Context, sess *Session, _ string) bool {
	return s.respond(sess, "ping", "pong")
}

// unknownHandler answers anything the dispatcher cannot route. The session
// stays open.
func (s *Server) unknownHandler(sess *Session, code string) bool {
	slog.Debug("Unknown command", "session_id", sess.id, "code", code)
	return s.respond(sess, "", "what")
}
