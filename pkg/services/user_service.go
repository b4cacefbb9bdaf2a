package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/calledit/calledit-server/pkg/identity"
	"github.com/calledit/calledit-server/pkg/models"
	"github.com/calledit/calledit-server/pkg/push"
	"github.com/calledit/calledit-server/pkg/store"
)

// UserService authenticates sessions and serves the per-user chat
// list and notification topics.
type UserService struct {
	store    store.Store
	verifier identity.Verifier
	profiles *ProfileCache
	secret   string
}

// NewUserService creates a new UserService.
func NewUserService(st store.Store, verifier identity.Verifier, profiles *ProfileCache, secret string) *UserService {
	return &UserService{store: st, verifier: verifier, profiles: profiles, secret: secret}
}

// Authenticate verifies the bearer token and creates or refreshes the
// user row. Chat memberships of an existing user are preserved;
// profile fields always track the latest token.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	id, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenFail, err)
	}

	user, err := s.store.GetUser(ctx, id.UserID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		user = &models.User{ID: id.UserID, Chats: []int64{}}
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrTokenFail, err)
	}

	user.DisplayName = id.DisplayName
	user.Email = id.Email
	user.PhotoURL = id.PhotoURL
	if err := s.store.PutUser(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenFail, err)
	}
	s.profiles.Put(models.ProfileOf(user))

	slog.Info("User authenticated", "user_id", user.ID)
	return user, nil
}

// ChatSummaries returns the chts payload for a user: one summary per
// chat the user belongs to, in the order the chats were joined. A user
// without chats gets an empty list, not an error.
func (s *UserService) ChatSummaries(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return []models.ChatSummary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFail, err)
	}

	chats, err := s.store.GetChats(ctx, user.Chats)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFail, err)
	}

	summaries := make([]models.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		summaries = append(summaries, models.ChatSummary{
			Name:        chat.Name,
			LastMessage: chat.LastMessage,
			ChatID:      chat.IDString(),
			Type:        chat.Type,
			IconColor:   "blue",
		})
	}
	return summaries, nil
}

// Topics returns the tpcs payload for a user: the push notification
// topic of every chat the user belongs to. Topics derive from the chat
// id alone, so no chat rows are read.
func (s *UserService) Topics(ctx context.Context, userID string) ([]models.ChatTopic, error) {
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return []models.ChatTopic{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFail, err)
	}

	topics := make([]models.ChatTopic, 0, len(user.Chats))
	for _, chatID := range user.Chats {
		topics = append(topics, models.ChatTopic{
			ChatID: strconv.FormatInt(chatID, 10),
			Topic:  push.Topic(chatID, s.secret),
		})
	}
	return topics, nil
}
