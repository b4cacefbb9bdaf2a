package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageEntryCodec(t *testing.T) {
	t.Run("text entry round trip", func(t *testing.T) {
		at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
		entry := NewTextMessage("uid-1", "hello there", at)

		data, err := json.Marshal(entry)
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"text","sender":"uid-1","timestamp":"2026-03-14T09:26:53","content":"hello there"}`, string(data))

		var decoded MessageEntry
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, entry, decoded)
	})

	t.Run("assertion entry round trip", func(t *testing.T) {
		entry := NewAssertionRef(42)

		data, err := json.Marshal(entry)
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"assertion","assertionId":42}`, string(data))

		var decoded MessageEntry
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, entry, decoded)
	})

	t.Run("log of mixed entries keeps order", func(t *testing.T) {
		at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
		log := []MessageEntry{
			NewTextMessage("a", "first", at),
			NewAssertionRef(7),
			NewTextMessage("b", "second", at.Add(time.Minute)),
		}

		data, err := json.Marshal(log)
		require.NoError(t, err)

		var decoded []MessageEntry
		require.NoError(t, json.Unmarshal(data, &decoded))
		require.Len(t, decoded, 3)
		assert.Equal(t, log, decoded)
	})

	t.Run("unknown kind rejected on encode", func(t *testing.T) {
		_, err := json.Marshal(MessageEntry{Kind: "sticker"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown message entry kind")
	})

	t.Run("unknown discriminant rejected on decode", func(t *testing.T) {
		var entry MessageEntry
		err := json.Unmarshal([]byte(`{"type":"sticker"}`), &entry)
		require.Error(t, err)
	})
}

func TestParseInstant(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"naive UTC", "2026-03-14T09:26:53", time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)},
		{"rfc3339 zulu", "2026-03-14T09:26:53Z", time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)},
		{"rfc3339 offset", "2026-03-14T11:26:53+02:00", time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInstant(tt.input)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := ParseInstant("yesterday-ish")
		require.Error(t, err)
	})
}
