package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/calledit/calledit-server/pkg/services"
)

// chatListHandler re-sends the session user's chat list on demand.
func (s *Server) chatListHandler(ctx context.Context, sess *Session, _ string) bool {
	if err := s.pushChatState(ctx, sess); err != nil {
		return s.respond(sess, chatListPrefix, services.Token(err))
	}
	return true
}

// createChatHandler creates a chat named by the payload with the caller as
// sole member.
func (s *Server) createChatHandler(ctx context.Context, sess *Session, payload string) bool {
	chatID, err := s.chats.Create(ctx, sess.UserID(), payload)
	if err != nil {
		return s.respond(sess, "crtc", services.Token(err))
	}
	return s.respond(sess, "crtc", "created:"+strconv.FormatInt(chatID, 10))
}

// joinTokenHandler hands out an invite token for one of the caller's chats.
func (s *Server) joinTokenHandler(ctx context.Context, sess *Session, payload string) bool {
	chatID, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil {
		return s.respond(sess, "cjtk", string(services.ErrInvalidChatID))
	}
	token, err := s.chats.JoinToken(ctx, sess.UserID(), chatID)
	if err != nil {
		return s.respond(sess, "cjtk", services.Token(err))
	}
	return s.respond(sess, "cjtk", token)
}

// joinHandler redeems an invite token and refreshes the caller's chat list.
func (s *Server) joinHandler(ctx context.Context, sess *Session, payload string) bool {
	if _, err := s.chats.Join(ctx, sess.UserID(), payload); err != nil {
		return s.respond(sess, "join", services.Token(err))
	}
	if !s.respond(sess, "join", "joined") {
		return false
	}
	if err := s.pushChatState(ctx, sess); err != nil {
		slog.Warn("Failed to push chat list", "session_id", sess.id, "user_id", sess.UserID(), "error", err)
	}
	return true
}

// membersHandler lists chat members ranked by their per-chat score.
func (s *Server) membersHandler(ctx context.Context, sess *Session, payload string) bool {
	chatID, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil {
		return s.respond(sess, "memb", string(services.ErrInvalidChatID))
	}
	members, err := s.chats.Members(ctx, chatID)
	if err != nil {
		return s.respond(sess, "memb", services.Token(err))
	}
	data, err := json.Marshal(members)
	if err != nil {
		slog.Error("Failed to marshal member list", "session_id", sess.id, "chat_id", chatID, "error", err)
		return s.respond(sess, "memb", string(services.ErrFail))
	}
	return s.respond(sess, "memb", string(data))
}

// pushChatState sends the chts summary frame followed by the tpcs topic
// frame. The topic frame is best-effort; its failure never fails the caller.
func (s *Server) pushChatState(ctx context.Context, sess *Session) error {
	summaries, err := s.users.ChatSummaries(ctx, sess.UserID())
	if err != nil {
		return err
	}
	data, err := json.Marshal(summaries)
	if err != nil {
		return fmt.Errorf("failed to marshal chat list: %w", err)
	}
	if err := sess.reply(chatListPrefix, string(data)); err != nil {
		return err
	}

	topics, err := s.users.Topics(ctx, sess.UserID())
	if err != nil {
		slog.Warn("Failed to resolve notification topics", "session_id", sess.id, "error", err)
		return nil
	}
	data, err = json.Marshal(topics)
	if err != nil {
		slog.Warn("Failed to marshal notification topics", "session_id", sess.id, "error", err)
		return nil
	}
	if err := sess.reply(topicsPrefix, string(data)); err != nil {
		slog.Warn("Failed to send notification topics", "session_id", sess.id, "error", err)
	}
	return nil
}
