package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/calledit/calledit-server/pkg/chatlock"
	"github.com/calledit/calledit-server/pkg/events"
	"github.com/calledit/calledit-server/pkg/models"
	"github.com/calledit/calledit-server/pkg/push"
	"github.com/calledit/calledit-server/pkg/store"
)

// Server-initiated frame prefixes.
const (
	eventNewMessage      = "newm"
	eventAssertionUpdate = "assr"
)

// historyLimit caps msgs replies to the most recent entries.
const historyLimit = 500

// MessageService appends text messages and serves message history.
type MessageService struct {
	store    store.Store
	locks    *chatlock.Manager
	events   *events.Engine
	notifier push.Notifier
	profiles *ProfileCache
	secret   string
}

// NewMessageService creates a new MessageService.
func NewMessageService(st store.Store, locks *chatlock.Manager, engine *events.Engine, notifier push.Notifier, profiles *ProfileCache, secret string) *MessageService {
	return &MessageService{store: st, locks: locks, events: engine, notifier: notifier, profiles: profiles, secret: secret}
}

// Send appends a text message to the chat, fans a newm event out to
// the other members, and fires a best-effort push notification.
func (s *MessageService) Send(ctx context.Context, userID string, chatID int64, text string) error {
	lock := s.locks.Get(chatID)
	lock.Lock()
	defer lock.Unlock()

	chat, err := s.store.GetChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotMember
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMessageFailed, err)
	}
	if !chat.HasMember(userID) {
		return ErrNotMember
	}

	sender := s.profiles.Resolve(ctx, userID)
	now := time.Now().UTC()
	chat.Messages = append(chat.Messages, models.NewTextMessage(userID, text, now))
	chat.LastMessage = sender.DisplayName + ": " + text
	if err := s.store.PutChat(ctx, chat); err != nil {
		return fmt.Errorf("%w: %v", ErrMessageFailed, err)
	}

	payload := models.TextMessagePayload{
		Type:      models.EntryText,
		Sender:    sender,
		Timestamp: models.FormatInstant(now),
		Content:   text,
	}
	body, err := eventBody(chatID, payload)
	if err != nil {
		slog.Warn("Failed to encode message event", "chat_id", chatID, "error", err)
	} else {
		s.events.Emit(events.Event{
			Prefix:     eventNewMessage,
			Data:       body,
			Recipients: othersOf(chat.Members, userID),
		})
	}
	s.notify(chatID, text, sender)

	slog.Debug("Message sent", "chat_id", chatID, "sender", userID)
	return nil
}

// History returns the msgs payload for a chat: the most recent entries
// with senders enriched to profiles and assertion references expanded
// to full payloads from the caller's perspective. Reading history also
// settles any referenced assertion that has reached majority past its
// validation date.
func (s *MessageService) History(ctx context.Context, userID string, chatID int64) ([]any, error) {
	lock := s.locks.Get(chatID)
	lock.Lock()
	defer lock.Unlock()

	chat, err := s.store.GetChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotMember
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFail, err)
	}
	if !chat.HasMember(userID) {
		return nil, ErrNotMember
	}

	entries := chat.Messages
	if len(entries) > historyLimit {
		entries = entries[len(entries)-historyLimit:]
	}

	now := time.Now().UTC()
	payloads := make([]any, 0, len(entries))
	for _, entry := range entries {
		switch entry.Kind {
		case models.EntryText:
			payloads = append(payloads, models.TextMessagePayload{
				Type:      models.EntryText,
				Sender:    s.profiles.Resolve(ctx, entry.Sender),
				Timestamp: models.FormatInstant(entry.Timestamp),
				Content:   entry.Content,
			})
		case models.EntryAssertion:
			a, err := s.store.GetAssertion(ctx, entry.AssertionID)
			if err != nil {
				slog.Warn("Skipping unresolvable assertion reference",
					"chat_id", chatID, "assertion_id", entry.AssertionID, "error", err)
				continue
			}
			if _, err := settleIfDue(ctx, s.store, chat, a, now); err != nil {
				slog.Warn("Failed to settle due assertion", "assertion_id", a.ID, "error", err)
			}
			payloads = append(payloads, assertionPayload(a, s.profiles.Resolve(ctx, a.AuthorID), userID))
		}
	}
	return payloads, nil
}

// notify fires the push notification without blocking the sender's
// request.
func (s *MessageService) notify(chatID int64, text string, sender models.Profile) {
	topic := push.Topic(chatID, s.secret)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifier.Notify(ctx, topic, text, sender); err != nil {
			slog.Warn("Failed to send push notification", "chat_id", chatID, "error", err)
		}
	}()
}

// eventBody frames an event payload as the decimal chat id, a comma,
// and the JSON body. Clients route events to a chat by that prefix.
func eventBody(chatID int64, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return append([]byte(strconv.FormatInt(chatID, 10)+","), data...), nil
}

// othersOf returns members minus the excluded user.
func othersOf(members []string, excludeID string) []string {
	others := make([]string, 0, len(members))
	for _, m := range members {
		if m != excludeID {
			others = append(others, m)
		}
	}
	return others
}
