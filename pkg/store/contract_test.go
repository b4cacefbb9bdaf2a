package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calledit/calledit-server/pkg/models"
)

// testStoreContract runs the behaviour every Store driver must satisfy.
// factory is invoked per subtest and must return an empty store.
func testStoreContract(t *testing.T, factory func(t *testing.T) Store) {
	ctx := context.Background()

	seedUser := func(t *testing.T, s Store, id string) *models.User {
		u := &models.User{ID: id, DisplayName: "User " + id, Email: id + "@example.com", PhotoURL: "https://pics/" + id}
		require.NoError(t, s.PutUser(ctx, u))
		return u
	}

	seedChat := func(t *testing.T, s Store, members ...string) *models.Chat {
		c := &models.Chat{
			Name:               "Weekend plans",
			Type:               models.DefaultChatType,
			Members:            members,
			Messages:           []models.MessageEntry{},
			ScoreSumPerUser:    map[string]int64{},
			PredictionsPerUser: map[string]int64{},
		}
		_, err := s.CreateChat(ctx, c)
		require.NoError(t, err)
		return c
	}

	t.Run("user round trip", func(t *testing.T) {
		s := factory(t)

		_, err := s.GetUser(ctx, "nobody")
		require.ErrorIs(t, err, ErrNotFound)

		u := &models.User{ID: "alice", DisplayName: "Alice", Email: "alice@example.com", PhotoURL: "https://pics/alice", Chats: []int64{}}
		require.NoError(t, s.PutUser(ctx, u))

		got, err := s.GetUser(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "Alice", got.DisplayName)
		assert.Equal(t, "alice@example.com", got.Email)
		assert.Empty(t, got.Chats)

		// Re-put refreshes profile fields in place
		u.DisplayName = "Alice B."
		u.Chats = []int64{3, 7}
		require.NoError(t, s.PutUser(ctx, u))

		got, err = s.GetUser(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "Alice B.", got.DisplayName)
		assert.Equal(t, []int64{3, 7}, got.Chats)
	})

	t.Run("chat create put get", func(t *testing.T) {
		s := factory(t)
		seedUser(t, s, "alice")

		c := seedChat(t, s, "alice")
		require.Greater(t, c.ID, int64(0))

		got, err := s.GetChat(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "Weekend plans", got.Name)
		assert.Equal(t, []string{"alice"}, got.Members)
		assert.Empty(t, got.Messages)

		got.Members = append(got.Members, "bob")
		got.LastMessage = "Alice: hi"
		got.Messages = append(got.Messages, models.NewTextMessage("alice", "hi", time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)))
		require.NoError(t, s.PutChat(ctx, got))

		got2, err := s.GetChat(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob"}, got2.Members)
		assert.Equal(t, "Alice: hi", got2.LastMessage)
		require.Len(t, got2.Messages, 1)
		assert.Equal(t, "hi", got2.Messages[0].Content)

		_, err = s.GetChat(ctx, 999999)
		require.ErrorIs(t, err, ErrNotFound)

		err = s.PutChat(ctx, &models.Chat{ID: 999999, Name: "ghost"})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("get chats preserves input order and skips missing", func(t *testing.T) {
		s := factory(t)
		seedUser(t, s, "alice")
		c1 := seedChat(t, s, "alice")
		c2 := seedChat(t, s, "alice")

		chats, err := s.GetChats(ctx, []int64{c2.ID, 424242, c1.ID})
		require.NoError(t, err)
		require.Len(t, chats, 2)
		assert.Equal(t, c2.ID, chats[0].ID)
		assert.Equal(t, c1.ID, chats[1].ID)

		chats, err = s.GetChats(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, chats)
	})

	t.Run("assertion round trip and due listing", func(t *testing.T) {
		s := factory(t)
		seedUser(t, s, "alice")
		c := seedChat(t, s, "alice")

		created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		a := &models.Assertion{
			AuthorID:                "alice",
			ChatID:                  c.ID,
			Text:                    "It will rain on Sunday",
			Predictions:             map[string]models.Prediction{"bob": {Confidence: 0.8, Forecast: true}},
			Votes:                   map[string]bool{},
			CreatedAt:               created,
			CastingForecastDeadline: created.Add(time.Hour),
			ValidationDate:          created.Add(2 * time.Hour),
		}
		_, err := s.CreateAssertion(ctx, a)
		require.NoError(t, err)
		require.Greater(t, a.ID, int64(0))

		got, err := s.GetAssertion(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "It will rain on Sunday", got.Text)
		assert.Equal(t, c.ID, got.ChatID)
		require.Contains(t, got.Predictions, "bob")
		assert.InDelta(t, 0.8, got.Predictions["bob"].Confidence, 1e-9)
		assert.True(t, got.ValidationDate.Equal(a.ValidationDate))
		assert.False(t, got.Completed)

		// Not due before the validation date, due after
		due, err := s.ListDueAssertions(ctx, created.Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, due)

		due, err = s.ListDueAssertions(ctx, created.Add(3*time.Hour))
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, a.ID, due[0].ID)

		// Completed assertions drop out of the due listing
		got.Completed = true
		got.FinalAnswer = true
		got.Votes["alice"] = true
		require.NoError(t, s.PutAssertion(ctx, got))

		due, err = s.ListDueAssertions(ctx, created.Add(3*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, due)

		final, err := s.GetAssertion(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, final.Completed)
		assert.True(t, final.FinalAnswer)
		assert.Equal(t, map[string]bool{"alice": true}, final.Votes)

		_, err = s.GetAssertion(ctx, 999999)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("returned values do not alias stored state", func(t *testing.T) {
		s := factory(t)
		seedUser(t, s, "alice")
		c := seedChat(t, s, "alice")

		got, err := s.GetChat(ctx, c.ID)
		require.NoError(t, err)
		got.Members = append(got.Members, "intruder")
		got.ScoreSumPerUser["intruder"] = 9000

		fresh, err := s.GetChat(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, fresh.Members)
		assert.NotContains(t, fresh.ScoreSumPerUser, "intruder")
	})

	t.Run("ping", func(t *testing.T) {
		s := factory(t)
		require.NoError(t, s.Ping(ctx))
	})
}
