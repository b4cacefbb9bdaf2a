package services

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calledit/calledit-server/pkg/chatlock"
	"github.com/calledit/calledit-server/pkg/models"
)

func TestChatService_Create(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fakeVerifier{})
	f.seedUser(t, "alice", "Alice")

	t.Run("creator becomes sole member on both sides", func(t *testing.T) {
		chatID, err := f.chats.Create(ctx, "alice", "  Poker Night  ")
		require.NoError(t, err)
		require.Positive(t, chatID)

		chat := f.getChat(t, chatID)
		assert.Equal(t, "Poker Night", chat.Name)
		assert.Equal(t, models.DefaultChatType, chat.Type)
		assert.Equal(t, []string{"alice"}, chat.Members)
		assert.Empty(t, chat.Messages)
		assert.Empty(t, chat.ScoreSumPerUser)
		assert.Empty(t, chat.PredictionsPerUser)

		user, err := f.store.GetUser(ctx, "alice")
		require.NoError(t, err)
		assert.Contains(t, user.Chats, chatID)
	})

	t.Run("blank name rejected", func(t *testing.T) {
		for _, name := range []string{"", "   ", "\t"} {
			_, err := f.chats.Create(ctx, "alice", name)
			assert.Equal(t, "invalid_name", Token(err))
		}
	})
}

func TestChatService_JoinToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fakeVerifier{})
	f.seedUser(t, "alice", "Alice")
	f.seedUser(t, "bob", "Bob")
	chatID := f.seedChat(t, "Club", "alice")

	t.Run("member mints a parsable token", func(t *testing.T) {
		token, err := f.chats.JoinToken(ctx, "alice", chatID)
		require.NoError(t, err)

		parts := strings.SplitN(token, ".", 2)
		require.Len(t, parts, 2)
		assert.Len(t, parts[0], joinTokenHashChars)

		parsed, err := parseJoinToken(token, testSecret)
		require.NoError(t, err)
		assert.Equal(t, chatID, parsed)
	})

	t.Run("non-member refused", func(t *testing.T) {
		_, err := f.chats.JoinToken(ctx, "bob", chatID)
		assert.Equal(t, "not_member", Token(err))
	})

	t.Run("unknown chat refused", func(t *testing.T) {
		_, err := f.chats.JoinToken(ctx, "alice", 999)
		assert.Equal(t, "not_member", Token(err))
	})

	t.Run("secretless server refuses", func(t *testing.T) {
		bare := NewChatService(f.store, chatlock.NewManager(), f.profiles, "")
		_, err := bare.JoinToken(ctx, "alice", chatID)
		assert.Equal(t, "secret_fail", Token(err))
	})
}

func TestChatService_Join(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fakeVerifier{})
	f.seedUser(t, "alice", "Alice")
	f.seedUser(t, "bob", "Bob")
	chatID := f.seedChat(t, "Club", "alice")

	token, err := f.chats.JoinToken(ctx, "alice", chatID)
	require.NoError(t, err)

	t.Run("valid token adds membership on both sides", func(t *testing.T) {
		joined, err := f.chats.Join(ctx, "bob", token)
		require.NoError(t, err)
		assert.Equal(t, chatID, joined)

		chat := f.getChat(t, chatID)
		assert.True(t, chat.HasMember("bob"))
		user, err := f.store.GetUser(ctx, "bob")
		require.NoError(t, err)
		assert.True(t, user.InChat(chatID))
	})

	t.Run("joining twice is refused", func(t *testing.T) {
		_, err := f.chats.Join(ctx, "bob", token)
		assert.Equal(t, "already_member", Token(err))
	})

	t.Run("tampered hash leaves membership unchanged", func(t *testing.T) {
		f.seedUser(t, "carol", "Carol")
		flipped := flipChar(token[0]) + token[1:]

		_, err := f.chats.Join(ctx, "carol", flipped)
		assert.Equal(t, "invalid_token", Token(err))

		chat := f.getChat(t, chatID)
		assert.False(t, chat.HasMember("carol"))
	})

	t.Run("malformed tokens rejected", func(t *testing.T) {
		for _, bad := range []string{"", "nodot", "hash.!!!not-base64!!!", "hash." + b64("not-a-number")} {
			_, err := f.chats.Join(ctx, "bob", bad)
			assert.Equal(t, "invalid_token", Token(err), "token %q", bad)
		}
	})

	t.Run("token for a vanished chat fails the add", func(t *testing.T) {
		ghost := joinTokenFor(4242, testSecret)
		_, err := f.chats.Join(ctx, "bob", ghost)
		assert.Equal(t, "add_failed", Token(err))
	})

	t.Run("secretless server refuses", func(t *testing.T) {
		bare := NewChatService(f.store, chatlock.NewManager(), f.profiles, "")
		_, err := bare.Join(ctx, "bob", token)
		assert.Equal(t, "secret_fail", Token(err))
	})
}

func TestChatService_Members(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fakeVerifier{})
	f.seedUser(t, "alice", "Alice")
	f.seedUser(t, "bob", "Bob")
	f.seedUser(t, "carol", "Carol")
	chatID := f.seedChat(t, "Club", "alice", "bob", "carol")

	// Alice has a scoring record, Bob has a poor one, Carol never
	// predicted and sits at the default rating.
	chat := f.getChat(t, chatID)
	chat.ScoreSumPerUser = map[string]int64{"alice": 1600, "bob": 300}
	chat.PredictionsPerUser = map[string]int64{"alice": 2, "bob": 1}
	require.NoError(t, f.store.PutChat(ctx, chat))

	t.Run("sorted by rating, best first", func(t *testing.T) {
		members, err := f.chats.Members(ctx, chatID)
		require.NoError(t, err)
		require.Len(t, members, 3)

		assert.Equal(t, "Alice", members[0].DisplayName)
		assert.Equal(t, int64(800), members[0].Elo)
		assert.Equal(t, "Carol", members[1].DisplayName)
		assert.Equal(t, int64(500), members[1].Elo)
		assert.Equal(t, "Bob", members[2].DisplayName)
		assert.Equal(t, int64(300), members[2].Elo)
	})

	t.Run("unknown chat has no members", func(t *testing.T) {
		_, err := f.chats.Members(ctx, 999)
		assert.Equal(t, "no_members", Token(err))
	})
}

func flipChar(c byte) string {
	if c == 'A' {
		return "B"
	}
	return "A"
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}
