package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/calledit/calledit-server/pkg/services"
)

// sendMessageHandler appends a text message to a chat. Payload is the chat id
// and the message text separated by a single space.
func (s *Server) sendMessageHandler(ctx context.Context, sess *Session, payload string) bool {
	idPart, text, found := strings.Cut(payload, " ")
	if !found {
		return s.respond(sess, "sndm", string(services.ErrInvalidFormat))
	}
	chatID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return s.respond(sess, "sndm", string(services.ErrInvalidChatID))
	}
	if err := s.messages.Send(ctx, sess.UserID(), chatID, text); err != nil {
		return s.respond(sess, "sndm", services.Token(err))
	}
	return s.respond(sess, "sndm", "ok")
}

// historyHandler returns the tail of a chat's message log. The reply prefix
// carries the chat id so clients can route it: "msgs{chatId}," ‖ JSON.
func (s *Server) historyHandler(ctx context.Context, sess *Session, payload string) bool {
	chatID, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil {
		return s.respond(sess, "msgs", string(services.ErrInvalidChatID))
	}
	entries, err := s.messages.History(ctx, sess.UserID(), chatID)
	if err != nil {
		return s.respond(sess, "msgs", services.Token(err))
	}
	data, err := json.Marshal(entries)
	if err != nil {
		slog.Error("Failed to marshal history", "session_id", sess.id, "chat_id", chatID, "error", err)
		return s.respond(sess, "msgs", string(services.ErrFail))
	}
	return s.respond(sess, "msgs"+strconv.FormatInt(chatID, 10)+",", string(data))
}
