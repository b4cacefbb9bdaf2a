package server

import (
	"context"
	"strconv"
	"strings"

	"github.com/calledit/calledit-server/pkg/models"
	"github.com/calledit/calledit-server/pkg/services"
)

// createAssertionHandler opens a new assertion. Payload:
// "{chatId},{validationDate},{castingForecastDeadline},{text}".
func (s *Server) createAssertionHandler(ctx context.Context, sess *Session, payload string) bool {
	parts := strings.SplitN(payload, ",", 4)
	if len(parts) < 4 {
		return s.respond(sess, "assr", string(services.ErrMissingFields))
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return s.respond(sess, "assr", string(services.ErrInvalidChatID))
	}
	validation, err := models.ParseInstant(strings.TrimSpace(parts[1]))
	if err != nil {
		return s.respond(sess, "assr", string(services.ErrInvalidFormat))
	}
	casting, err := models.ParseInstant(strings.TrimSpace(parts[2]))
	if err != nil {
		return s.respond(sess, "assr", string(services.ErrInvalidFormat))
	}
	if _, err := s.assertions.Create(ctx, sess.UserID(), chatID, validation, casting, parts[3]); err != nil {
		return s.respond(sess, "assr", services.Token(err))
	}
	return s.respond(sess, "assr", "ok")
}

// predictHandler records a confidence-weighted forecast. Payload:
// "{assertionId},{confidence},{true|false}".
func (s *Server) predictHandler(ctx context.Context, sess *Session, payload string) bool {
	parts := strings.SplitN(payload, ",", 3)
	if len(parts) < 3 {
		return s.respond(sess, "pred", string(services.ErrMissingFields))
	}
	assertionID, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return s.respond(sess, "pred", string(services.ErrInvalidFormat))
	}
	confidence, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return s.respond(sess, "pred", string(services.ErrInvalidConfidence))
	}
	forecast, err := strconv.ParseBool(strings.TrimSpace(parts[2]))
	if err != nil {
		return s.respond(sess, "pred", string(services.ErrInvalidForecast))
	}
	if err := s.assertions.Predict(ctx, sess.UserID(), assertionID, confidence, forecast); err != nil {
		return s.respond(sess, "pred", services.Token(err))
	}
	return s.respond(sess, "pred", "ok")
}

// voteHandler records an outcome judgement. Payload: "{assertionId},{true|false}".
func (s *Server) voteHandler(ctx context.Context, sess *Session, payload string) bool {
	idPart, answerPart, found := strings.Cut(payload, ",")
	if !found {
		return s.respond(sess, "vote", string(services.ErrMissingFields))
	}
	assertionID, err := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
	if err != nil {
		return s.respond(sess, "vote", string(services.ErrInvalidFormat))
	}
	answer, err := strconv.ParseBool(strings.TrimSpace(answerPart))
	if err != nil {
		return s.respond(sess, "vote", string(services.ErrInvalidForecast))
	}
	if err := s.assertions.Vote(ctx, sess.UserID(), assertionID, answer); err != nil {
		return s.respond(sess, "vote", services.Token(err))
	}
	return s.respond(sess, "vote", "ok")
}
