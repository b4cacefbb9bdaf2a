package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calledit/calledit-server/pkg/chatlock"
	"github.com/calledit/calledit-server/pkg/events"
	"github.com/calledit/calledit-server/pkg/identity"
	"github.com/calledit/calledit-server/pkg/models"
	"github.com/calledit/calledit-server/pkg/push"
	"github.com/calledit/calledit-server/pkg/store"
)

const testSecret = "test-secret"

// fakeVerifier resolves tokens from a fixed table.
type fakeVerifier map[string]identity.Identity

func (f fakeVerifier) Verify(_ context.Context, token string) (identity.Identity, error) {
	id, ok := f[token]
	if !ok {
		return identity.Identity{}, errors.New("unknown token")
	}
	return id, nil
}

// eventFrame is one delivered event as observed by a test sink.
type eventFrame struct {
	Prefix string
	Data   string
}

// testSink records event deliveries for one user.
type testSink struct {
	mu     sync.Mutex
	frames []eventFrame
	seen   chan struct{}
}

func newTestSink() *testSink {
	return &testSink{seen: make(chan struct{}, 64)}
}

func (s *testSink) SendEvent(prefix string, data []byte) error {
	s.mu.Lock()
	s.frames = append(s.frames, eventFrame{Prefix: prefix, Data: string(data)})
	s.mu.Unlock()
	s.seen <- struct{}{}
	return nil
}

func (s *testSink) recorded() []eventFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]eventFrame(nil), s.frames...)
}

// waitEvent blocks until the sink has seen n deliveries in total.
func (s *testSink) waitEvent(t *testing.T, n int) {
	t.Helper()
	for i := len(s.recorded()); i < n; i++ {
		select {
		case <-s.seen:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d of %d", i+1, n)
		}
	}
}

// fixture wires the full service stack onto the in-memory store.
type fixture struct {
	store      store.Store
	locks      *chatlock.Manager
	engine     *events.Engine
	profiles   *ProfileCache
	users      *UserService
	chats      *ChatService
	messages   *MessageService
	assertions *AssertionService
}

func newFixture(t *testing.T, verifier identity.Verifier) *fixture {
	t.Helper()

	st := store.NewMemory()
	locks := chatlock.NewManager()
	engine := events.NewEngine(64, 0)
	engine.Start()
	t.Cleanup(engine.Stop)

	profiles := NewProfileCache(st, 64, time.Minute)
	return &fixture{
		store:      st,
		locks:      locks,
		engine:     engine,
		profiles:   profiles,
		users:      NewUserService(st, verifier, profiles, testSecret),
		chats:      NewChatService(st, locks, profiles, testSecret),
		messages:   NewMessageService(st, locks, engine, push.NoopNotifier{}, profiles, testSecret),
		assertions: NewAssertionService(st, locks, engine, profiles),
	}
}

// listen registers a fresh sink for the user and returns it.
func (f *fixture) listen(t *testing.T, userID string) *testSink {
	t.Helper()
	sink := newTestSink()
	f.engine.Register(userID, sink)
	t.Cleanup(func() { f.engine.Unregister(userID, sink) })
	return sink
}

func (f *fixture) seedUser(t *testing.T, userID, displayName string, chats ...int64) {
	t.Helper()
	if chats == nil {
		chats = []int64{}
	}
	err := f.store.PutUser(context.Background(), &models.User{
		ID:          userID,
		DisplayName: displayName,
		Email:       userID + "@example.com",
		PhotoURL:    "https://example.com/" + userID + ".png",
		Chats:       chats,
	})
	require.NoError(t, err)
}

// seedChat creates a chat with the given members and links it into
// each member's chat list, keeping both sides of the relation.
func (f *fixture) seedChat(t *testing.T, name string, members ...string) int64 {
	t.Helper()
	ctx := context.Background()

	chatID, err := f.store.CreateChat(ctx, &models.Chat{
		Name:               name,
		Type:               models.DefaultChatType,
		Members:            members,
		Messages:           []models.MessageEntry{},
		ScoreSumPerUser:    map[string]int64{},
		PredictionsPerUser: map[string]int64{},
	})
	require.NoError(t, err)

	for _, userID := range members {
		user, err := f.store.GetUser(ctx, userID)
		require.NoError(t, err)
		user.Chats = append(user.Chats, chatID)
		require.NoError(t, f.store.PutUser(ctx, user))
	}
	return chatID
}

// seedAssertion stores an assertion directly, bypassing validation, so
// tests can construct windows that Create would reject.
func (f *fixture) seedAssertion(t *testing.T, a *models.Assertion) int64 {
	t.Helper()
	if a.Predictions == nil {
		a.Predictions = map[string]models.Prediction{}
	}
	if a.Votes == nil {
		a.Votes = map[string]bool{}
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC().Add(-time.Hour)
	}
	id, err := f.store.CreateAssertion(context.Background(), a)
	require.NoError(t, err)
	return id
}

func (f *fixture) getChat(t *testing.T, chatID int64) *models.Chat {
	t.Helper()
	chat, err := f.store.GetChat(context.Background(), chatID)
	require.NoError(t, err)
	return chat
}

func (f *fixture) getAssertion(t *testing.T, assertionID int64) *models.Assertion {
	t.Helper()
	a, err := f.store.GetAssertion(context.Background(), assertionID)
	require.NoError(t, err)
	return a
}
