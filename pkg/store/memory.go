package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/calledit/calledit-server/pkg/models"
)

// Memory is an in-process Store used for local development (STORE_DRIVER=memory)
// and in tests. Values are copied on the way in and out so callers never alias
// stored state.
type Memory struct {
	mu         sync.RWMutex
	users      map[string]*models.User
	chats      map[int64]*models.Chat
	assertions map[int64]*models.Assertion

	nextChatID      int64
	nextAssertionID int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:      make(map[string]*models.User),
		chats:      make(map[int64]*models.Chat),
		assertions: make(map[int64]*models.Assertion),
	}
}

// GetUser returns the user or ErrNotFound.
func (m *Memory) GetUser(_ context.Context, userID string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

// PutUser inserts or replaces the user row.
func (m *Memory) PutUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = cloneUser(u)
	return nil
}

// GetChat returns the chat or ErrNotFound.
func (m *Memory) GetChat(_ context.Context, chatID int64) (*models.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chats[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneChat(c), nil
}

// GetChats returns existing chats in input order, skipping missing ids.
func (m *Memory) GetChats(_ context.Context, chatIDs []int64) ([]*models.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chats := make([]*models.Chat, 0, len(chatIDs))
	for _, id := range chatIDs {
		if c, ok := m.chats[id]; ok {
			chats = append(chats, cloneChat(c))
		}
	}
	return chats, nil
}

// CreateChat inserts the chat and assigns the next id.
func (m *Memory) CreateChat(_ context.Context, c *models.Chat) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextChatID++
	c.ID = m.nextChatID
	m.chats[c.ID] = cloneChat(c)
	return c.ID, nil
}

// PutChat replaces an existing chat row.
func (m *Memory) PutChat(_ context.Context, c *models.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[c.ID]; !ok {
		return ErrNotFound
	}
	m.chats[c.ID] = cloneChat(c)
	return nil
}

// GetAssertion returns the assertion or ErrNotFound.
func (m *Memory) GetAssertion(_ context.Context, assertionID int64) (*models.Assertion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assertions[assertionID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAssertion(a), nil
}

// CreateAssertion inserts the assertion and assigns the next id.
func (m *Memory) CreateAssertion(_ context.Context, a *models.Assertion) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAssertionID++
	a.ID = m.nextAssertionID
	m.assertions[a.ID] = cloneAssertion(a)
	return a.ID, nil
}

// PutAssertion replaces an existing assertion row.
func (m *Memory) PutAssertion(_ context.Context, a *models.Assertion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assertions[a.ID]; !ok {
		return ErrNotFound
	}
	m.assertions[a.ID] = cloneAssertion(a)
	return nil
}

// ListDueAssertions returns open assertions past their validation date, by id.
func (m *Memory) ListDueAssertions(_ context.Context, now time.Time) ([]*models.Assertion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var due []*models.Assertion
	for _, a := range m.assertions {
		if !a.Completed && !now.Before(a.ValidationDate) {
			due = append(due, cloneAssertion(a))
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

// Ping always succeeds for the in-memory store.
func (m *Memory) Ping(context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error { return nil }

func cloneUser(u *models.User) *models.User {
	out := *u
	out.Chats = append([]int64(nil), u.Chats...)
	return &out
}

func cloneChat(c *models.Chat) *models.Chat {
	out := *c
	out.Members = append([]string(nil), c.Members...)
	out.Messages = append([]models.MessageEntry(nil), c.Messages...)
	out.ScoreSumPerUser = cloneCounts(c.ScoreSumPerUser)
	out.PredictionsPerUser = cloneCounts(c.PredictionsPerUser)
	return &out
}

func cloneAssertion(a *models.Assertion) *models.Assertion {
	out := *a
	out.Predictions = make(map[string]models.Prediction, len(a.Predictions))
	for k, v := range a.Predictions {
		out.Predictions[k] = v
	}
	out.Votes = make(map[string]bool, len(a.Votes))
	for k, v := range a.Votes {
		out.Votes[k] = v
	}
	return &out
}

func cloneCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
