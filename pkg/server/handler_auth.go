package server

import (
	"context"
	"log/slog"

	"github.com/calledit/calledit-server/pkg/services"
)

// authHandler verifies the bearer token carried by the user command, upserts
// the account, and binds the session to it. A failed verification closes the
// session after the token_fail reply; success is followed by the chat list
// and topic frames.
func (s *Server) authHandler(ctx context.Context, sess *Session, payload string) bool {
	user, err := s.users.Authenticate(ctx, payload)
	if err != nil {
		slog.Warn("Authentication failed", "session_id", sess.id, "error", err)
		s.respond(sess, "", services.Token(err))
		return false
	}

	// Re-login under the same account keeps the existing registration;
	// switching accounts moves the session's event binding.
	if prev := sess.UserID(); prev != user.ID {
		if prev != "" {
			s.engine.Unregister(prev, sess)
		}
		sess.bind(user.ID)
		s.engine.Register(user.ID, sess)
	}

	if !s.respond(sess, "", "token_ok") {
		return false
	}
	if err := s.pushChatState(ctx, sess); err != nil {
		slog.Warn("Failed to push chat list", "session_id", sess.id, "user_id", user.ID, "error", err)
	}
	return true
}
