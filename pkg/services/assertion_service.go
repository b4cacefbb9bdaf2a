package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/calledit/calledit-server/pkg/chatlock"
	"github.com/calledit/calledit-server/pkg/events"
	"github.com/calledit/calledit-server/pkg/models"
	"github.com/calledit/calledit-server/pkg/store"
)

// AssertionService owns the assertion lifecycle: creation, forecasts,
// votes, and majority settlement with scoring.
type AssertionService struct {
	store    store.Store
	locks    *chatlock.Manager
	events   *events.Engine
	profiles *ProfileCache
}

// NewAssertionService creates a new AssertionService.
func NewAssertionService(st store.Store, locks *chatlock.Manager, engine *events.Engine, profiles *ProfileCache) *AssertionService {
	return &AssertionService{store: st, locks: locks, events: engine, profiles: profiles}
}

// Create validates the date window, stores the assertion, and appends
// a reference entry to the chat log. The casting deadline must lie in
// the future and strictly before the validation date. The newm event
// goes to every member, the author included.
func (s *AssertionService) Create(ctx context.Context, userID string, chatID int64, validationDate, castingDeadline time.Time, text string) (int64, error) {
	now := time.Now().UTC()
	if !castingDeadline.After(now) {
		return 0, ErrCastingDeadlinePast
	}
	if !validationDate.After(castingDeadline) {
		return 0, ErrValidationBeforeCasting
	}

	lock := s.locks.Get(chatID)
	lock.Lock()
	defer lock.Unlock()

	chat, err := s.store.GetChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, ErrNotMember
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}
	if !chat.HasMember(userID) {
		return 0, ErrNotMember
	}

	a := &models.Assertion{
		AuthorID:                userID,
		ChatID:                  chatID,
		Text:                    text,
		Predictions:             map[string]models.Prediction{},
		Votes:                   map[string]bool{},
		ValidationDate:          validationDate,
		CastingForecastDeadline: castingDeadline,
		CreatedAt:               now,
	}
	assertionID, err := s.store.CreateAssertion(ctx, a)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}
	chat.Messages = append(chat.Messages, models.NewAssertionRef(assertionID))
	if err := s.store.PutChat(ctx, chat); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	s.emitAssertion(ctx, eventNewMessage, chat.Members, a, "")
	slog.Info("Assertion created", "assertion_id", assertionID, "chat_id", chatID, "author", userID)
	return assertionID, nil
}

// Predict records a one-shot forecast on an open assertion before its
// casting deadline. The other members learn that a forecast landed;
// only the caller's own event is marked as theirs.
func (s *AssertionService) Predict(ctx context.Context, userID string, assertionID int64, confidence float64, forecast bool) error {
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return ErrInvalidConfidence
	}

	a, chat, unlock, err := s.fetchForUpdate(ctx, assertionID)
	if err != nil {
		return err
	}
	defer unlock()

	now := time.Now().UTC()
	if _, err := settleIfDue(ctx, s.store, chat, a, now); err != nil {
		slog.Warn("Failed to settle assertion before forecast", "assertion_id", assertionID, "error", err)
	}
	if a.Completed {
		return ErrAssertionComplete
	}
	if a.CastingClosed(now) {
		return ErrCastingDeadlinePassed
	}
	if !chat.HasMember(userID) {
		return ErrNotMember
	}
	if _, exists := a.Predictions[userID]; exists {
		return ErrAddFailed
	}

	if a.Predictions == nil {
		a.Predictions = map[string]models.Prediction{}
	}
	a.Predictions[userID] = models.Prediction{Confidence: confidence, Forecast: forecast}
	if err := s.store.PutAssertion(ctx, a); err != nil {
		return fmt.Errorf("%w: %v", ErrAddFailed, err)
	}

	s.emitAssertion(ctx, eventAssertionUpdate, othersOf(chat.Members, userID), a, "")
	s.emitAssertion(ctx, eventAssertionUpdate, []string{userID}, a, userID)
	slog.Info("Forecast recorded", "assertion_id", assertionID, "user_id", userID)
	return nil
}

// Vote records or replaces the caller's outcome vote once the
// validation window is open, re-evaluates the majority, and fans the
// refreshed assertion out to every member.
func (s *AssertionService) Vote(ctx context.Context, userID string, assertionID int64, answer bool) error {
	a, chat, unlock, err := s.fetchForUpdate(ctx, assertionID)
	if err != nil {
		return err
	}
	defer unlock()

	now := time.Now().UTC()
	if a.Completed {
		return ErrAssertionComplete
	}
	if !a.VotingOpen(now) {
		return ErrVotingNotOpen
	}
	if !chat.HasMember(userID) {
		return ErrNotMember
	}

	if a.Votes == nil {
		a.Votes = map[string]bool{}
	}
	a.Votes[userID] = answer
	if err := s.store.PutAssertion(ctx, a); err != nil {
		return fmt.Errorf("%w: %v", ErrVoteFailed, err)
	}

	if _, err := settleIfDue(ctx, s.store, chat, a, now); err != nil {
		slog.Warn("Failed to settle assertion after vote", "assertion_id", assertionID, "error", err)
	}

	s.emitAssertion(ctx, eventAssertionUpdate, chat.Members, a, "")
	slog.Info("Vote recorded", "assertion_id", assertionID, "user_id", userID, "answer", answer)
	return nil
}

// SettleDue settles every assertion whose validation date has passed
// and that has reached a majority, and reports how many were settled.
// The interactive read path remains authoritative; this exists so
// assertions in idle chats complete without waiting for a reader.
func (s *AssertionService) SettleDue(ctx context.Context) (int, error) {
	due, err := s.store.ListDueAssertions(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to list due assertions: %w", err)
	}

	settled := 0
	for _, a := range due {
		ok, err := s.settleOne(ctx, a.ID)
		if err != nil {
			slog.Warn("Failed to settle assertion", "assertion_id", a.ID, "error", err)
			continue
		}
		if ok {
			settled++
		}
	}
	return settled, nil
}

func (s *AssertionService) settleOne(ctx context.Context, assertionID int64) (bool, error) {
	a, chat, unlock, err := s.fetchForUpdate(ctx, assertionID)
	if err != nil {
		return false, err
	}
	defer unlock()

	settled, err := settleIfDue(ctx, s.store, chat, a, time.Now().UTC())
	if err != nil || !settled {
		return settled, err
	}
	s.emitAssertion(ctx, eventAssertionUpdate, chat.Members, a, "")
	return true, nil
}

// fetchForUpdate loads the assertion, takes its chat's lock, and
// reloads both rows under it. The first read only learns which chat to
// lock; the locked reads are the authoritative ones. On success the
// caller must invoke unlock.
func (s *AssertionService) fetchForUpdate(ctx context.Context, assertionID int64) (*models.Assertion, *models.Chat, func(), error) {
	a, err := s.store.GetAssertion(ctx, assertionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, nil, ErrAssertionNotFound
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrFail, err)
	}

	lock := s.locks.Get(a.ChatID)
	lock.Lock()

	a, err = s.store.GetAssertion(ctx, assertionID)
	if err != nil {
		lock.Unlock()
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, nil, ErrAssertionNotFound
		}
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrFail, err)
	}
	chat, err := s.store.GetChat(ctx, a.ChatID)
	if err != nil {
		lock.Unlock()
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, nil, ErrNotMember
		}
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrFail, err)
	}
	return a, chat, lock.Unlock, nil
}

// emitAssertion queues one assertion event for the recipients,
// rendered from viewerID's perspective. An empty viewer produces the
// neutral payload with both participation flags cleared.
func (s *AssertionService) emitAssertion(ctx context.Context, prefix string, recipients []string, a *models.Assertion, viewerID string) {
	if len(recipients) == 0 {
		return
	}
	body, err := eventBody(a.ChatID, assertionPayload(a, s.profiles.Resolve(ctx, a.AuthorID), viewerID))
	if err != nil {
		slog.Warn("Failed to encode assertion event", "assertion_id", a.ID, "error", err)
		return
	}
	s.events.Emit(events.Event{Prefix: prefix, Data: body, Recipients: recipients})
}

// settleIfDue promotes an assertion to completed once a majority vote
// exists past its validation date, scoring every forecast into the
// chat's statistics. Yes-votes are tallied against the threshold
// first, so an exact tie at even membership settles to yes. Both rows
// are persisted on promotion. The caller must hold the chat lock.
func settleIfDue(ctx context.Context, st store.Store, chat *models.Chat, a *models.Assertion, now time.Time) (bool, error) {
	if a.Completed {
		return false, nil
	}
	if a.ValidationDate.IsZero() || now.Before(a.ValidationDate) {
		return false, nil
	}

	yes, no := 0, 0
	for _, v := range a.Votes {
		if v {
			yes++
		} else {
			no++
		}
	}
	threshold := majorityThreshold(len(chat.Members))
	var final bool
	switch {
	case yes >= threshold:
		final = true
	case no >= threshold:
		final = false
	default:
		// No majority yet. The assertion stays open and will be
		// re-evaluated on the next read or vote.
		return false, nil
	}

	if chat.ScoreSumPerUser == nil {
		chat.ScoreSumPerUser = map[string]int64{}
	}
	if chat.PredictionsPerUser == nil {
		chat.PredictionsPerUser = map[string]int64{}
	}
	for userID, pred := range a.Predictions {
		chat.ScoreSumPerUser[userID] += calculateScore(pred.Confidence, pred.Forecast == final)
		chat.PredictionsPerUser[userID]++
	}

	a.Completed = true
	a.FinalAnswer = final
	if err := st.PutChat(ctx, chat); err != nil {
		return false, fmt.Errorf("failed to persist scores for chat %d: %w", chat.ID, err)
	}
	if err := st.PutAssertion(ctx, a); err != nil {
		return false, fmt.Errorf("failed to complete assertion %d: %w", a.ID, err)
	}

	slog.Info("Assertion completed",
		"assertion_id", a.ID,
		"chat_id", chat.ID,
		"final_answer", final,
		"forecasts_scored", len(a.Predictions))
	return true, nil
}

// assertionPayload builds the wire form of an assertion as seen by
// viewerID. Other members' individual forecasts and votes are reduced
// to counts.
func assertionPayload(a *models.Assertion, author models.Profile, viewerID string) models.AssertionPayload {
	_, didPredict := a.Predictions[viewerID]
	_, didVote := a.Votes[viewerID]
	return models.AssertionPayload{
		Type:                    models.EntryAssertion,
		AssertionID:             a.ID,
		ChatID:                  strconv.FormatInt(a.ChatID, 10),
		Author:                  author,
		Text:                    a.Text,
		CreatedAt:               models.FormatInstant(a.CreatedAt),
		CastingForecastDeadline: models.FormatInstant(a.CastingForecastDeadline),
		ValidationDate:          models.FormatInstant(a.ValidationDate),
		Completed:               a.Completed,
		FinalAnswer:             a.FinalAnswer,
		Predictions:             len(a.Predictions),
		Votes:                   len(a.Votes),
		DidPredict:              didPredict,
		DidVote:                 didVote,
	}
}
