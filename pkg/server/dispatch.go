package server

import (
	"context"
	"log/slog"
	"strings"

	"github.com/calledit/calledit-server/pkg/services"
)

// codeLen is the width of the command code at the front of each frame.
const codeLen = 4

// Reply prefixes reused outside their own handlers.
const (
	chatListPrefix = "chts"
	topicsPrefix   = "tpcs"
)

// handlerFunc processes one decoded command. The returned boolean keeps the
// session's read loop running; false ends the session.
type handlerFunc func(ctx context.Context, sess *Session, payload string) bool

// routes maps command codes to handlers. Codes are matched after lowercasing.
func (s *Server) routes() map[string]handlerFunc {
	return map[string]handlerFunc{
		"ping": s.pingHandler,
		"user": s.authHandler,
		"chts": s.authed(chatListPrefix, s.chatListHandler),
		"msgs": s.authed("msgs", s.historyHandler),
		"memb": s.authed("memb", s.membersHandler),
		"sndm": s.authed("sndm", s.sendMessageHandler),
		"crtc": s.authed("crtc", s.createChatHandler),
		"cjtk": s.authed("cjtk", s.joinTokenHandler),
		"join": s.authed("join", s.joinHandler),
		"assr": s.authed("assr", s.createAssertionHandler),
		"pred": s.authed("pred", s.predictHandler),
		"vote": s.authed("vote", s.voteHandler),
	}
}

// dispatch extracts the four-byte code and routes the rest of the frame.
func (s *Server) dispatch(ctx context.Context, sess *Session, plaintext []byte) bool {
	if len(plaintext) < codeLen {
		return s.unknownHandler(sess, string(plaintext))
	}
	code := strings.ToLower(string(plaintext[:codeLen]))
	h, ok := s.handlers[code]
	if !ok {
		return s.unknownHandler(sess, code)
	}
	return h(ctx, sess, string(plaintext[codeLen:]))
}

// authed guards a handler behind authentication; unauthenticated calls get
// the generic failure token under the command's own prefix.
func (s *Server) authed(prefix string, h handlerFunc) handlerFunc {
	return func(ctx context.Context, sess *Session, payload string) bool {
		if !sess.authenticated() {
			return s.respond(sess, prefix, string(services.ErrFail))
		}
		return h(ctx, sess, payload)
	}
}

// respond writes one reply frame; a failed write ends the session.
func (s *Server) respond(sess *Session, prefix, body string) bool {
	if err := sess.reply(prefix, body); err != nil {
		slog.Warn("Failed to write reply", "session_id", sess.id, "prefix", prefix, "error", err)
		return false
	}
	return true
}
