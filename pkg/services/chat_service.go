package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/calledit/calledit-server/pkg/chatlock"
	"github.com/calledit/calledit-server/pkg/models"
	"github.com/calledit/calledit-server/pkg/store"
)

// ChatService manages chat lifecycle and membership: creation, join
// tokens, joining, and the member scoreboard.
type ChatService struct {
	store    store.Store
	locks    *chatlock.Manager
	profiles *ProfileCache
	secret   string
}

// NewChatService creates a new ChatService.
func NewChatService(st store.Store, locks *chatlock.Manager, profiles *ProfileCache, secret string) *ChatService {
	return &ChatService{store: st, locks: locks, profiles: profiles, secret: secret}
}

// Create makes a new chat with the creator as its only member and
// links it into the creator's chat list. Statistics start empty; a
// member earns an entry on their first scored prediction.
func (s *ChatService) Create(ctx context.Context, userID, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, ErrInvalidName
	}

	chat := &models.Chat{
		Name:               name,
		Type:               models.DefaultChatType,
		Members:            []string{userID},
		Messages:           []models.MessageEntry{},
		ScoreSumPerUser:    map[string]int64{},
		PredictionsPerUser: map[string]int64{},
	}
	chatID, err := s.store.CreateChat(ctx, chat)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}
	if err := s.addChatToUser(ctx, userID, chatID); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	slog.Info("Chat created", "chat_id", chatID, "name", name, "creator", userID)
	return chatID, nil
}

// JoinToken returns the invite token for a chat. Only members may
// mint tokens, and only when the server has a token secret.
func (s *ChatService) JoinToken(ctx context.Context, userID string, chatID int64) (string, error) {
	if s.secret == "" {
		return "", ErrSecretFail
	}
	chat, err := s.store.GetChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNotMember
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFail, err)
	}
	if !chat.HasMember(userID) {
		return "", ErrNotMember
	}
	return joinTokenFor(chatID, s.secret), nil
}

// Join consumes an invite token and adds the user to the chat it
// names, maintaining both sides of the membership relation under the
// chat lock.
func (s *ChatService) Join(ctx context.Context, userID, token string) (int64, error) {
	if s.secret == "" {
		return 0, ErrSecretFail
	}
	chatID, err := parseJoinToken(token, s.secret)
	if err != nil {
		return 0, err
	}

	lock := s.locks.Get(chatID)
	lock.Lock()
	defer lock.Unlock()

	chat, err := s.store.GetChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("%w: chat %d does not exist", ErrAddFailed, chatID)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAddFailed, err)
	}
	if chat.HasMember(userID) {
		return 0, ErrAlreadyMember
	}

	chat.Members = append(chat.Members, userID)
	if err := s.store.PutChat(ctx, chat); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAddFailed, err)
	}
	if err := s.addChatToUser(ctx, userID, chatID); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAddFailed, err)
	}

	slog.Info("User joined chat", "user_id", userID, "chat_id", chatID)
	return chatID, nil
}

// Members returns the memb payload for a chat: every member's profile
// with their per-chat rating, best first.
func (s *ChatService) Members(ctx context.Context, chatID int64) ([]models.MemberInfo, error) {
	lock := s.locks.Get(chatID)
	lock.Lock()
	defer lock.Unlock()

	chat, err := s.store.GetChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoMembers
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFail, err)
	}
	if len(chat.Members) == 0 {
		return nil, ErrNoMembers
	}

	members := make([]models.MemberInfo, 0, len(chat.Members))
	for _, userID := range chat.Members {
		members = append(members, models.MemberInfo{
			Profile: s.profiles.Resolve(ctx, userID),
			Elo:     chat.EloOf(userID),
		})
	}
	sort.SliceStable(members, func(i, j int) bool { return members[i].Elo > members[j].Elo })
	return members, nil
}

// addChatToUser appends chatID to the user's chat list if absent.
func (s *ChatService) addChatToUser(ctx context.Context, userID string, chatID int64) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	if user.InChat(chatID) {
		return nil
	}
	user.Chats = append(user.Chats, chatID)
	if err := s.store.PutUser(ctx, user); err != nil {
		return fmt.Errorf("failed to update user %s: %w", userID, err)
	}
	return nil
}
