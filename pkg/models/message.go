package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message entry kinds. The chat message log is a sequence of tagged entries:
// plain text messages interleaved with references to assertions.
const (
	EntryText      = "text"
	EntryAssertion = "assertion"
)

// MessageEntry is one element of a chat's message log. Kind selects which of
// the remaining fields are meaningful.
type MessageEntry struct {
	Kind        string
	Sender      string
	Timestamp   time.Time
	Content     string
	AssertionID int64
}

// NewTextMessage builds a text entry.
func NewTextMessage(sender, content string, at time.Time) MessageEntry {
	return MessageEntry{Kind: EntryText, Sender: sender, Timestamp: at, Content: content}
}

// NewAssertionRef builds an entry pointing at an assertion record.
func NewAssertionRef(assertionID int64) MessageEntry {
	return MessageEntry{Kind: EntryAssertion, AssertionID: assertionID}
}

// MarshalJSON encodes the entry with a type discriminant.
func (e MessageEntry) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case EntryText:
		return json.Marshal(struct {
			Type      string `json:"type"`
			Sender    string `json:"sender"`
			Timestamp string `json:"timestamp"`
			Content   string `json:"content"`
		}{EntryText, e.Sender, FormatInstant(e.Timestamp), e.Content})
	case EntryAssertion:
		return json.Marshal(struct {
			Type        string `json:"type"`
			AssertionID int64  `json:"assertionId"`
		}{EntryAssertion, e.AssertionID})
	default:
		return nil, fmt.Errorf("unknown message entry kind %q", e.Kind)
	}
}

// UnmarshalJSON decodes an entry by its type discriminant.
func (e *MessageEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type        string `json:"type"`
		Sender      string `json:"sender"`
		Timestamp   string `json:"timestamp"`
		Content     string `json:"content"`
		AssertionID int64  `json:"assertionId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case EntryText:
		ts, err := ParseInstant(raw.Timestamp)
		if err != nil {
			return fmt.Errorf("invalid message timestamp: %w", err)
		}
		*e = MessageEntry{Kind: EntryText, Sender: raw.Sender, Timestamp: ts, Content: raw.Content}
	case EntryAssertion:
		*e = MessageEntry{Kind: EntryAssertion, AssertionID: raw.AssertionID}
	default:
		return fmt.Errorf("unknown message entry kind %q", raw.Type)
	}
	return nil
}

// TextMessagePayload is the wire form of a text entry, with the sender
// enriched from a bare userId to a profile.
type TextMessagePayload struct {
	Type      string  `json:"type"`      // always EntryText
	Sender    Profile `json:"sender"`    // resolved sender profile
	Timestamp string  `json:"timestamp"` // naive UTC instant
	Content   string  `json:"content"`
}
