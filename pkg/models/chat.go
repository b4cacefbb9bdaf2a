package models

import "strconv"

// DefaultChatType is assigned to chats created through the crtc command.
const DefaultChatType = "group"

// Chat is a conversation with members, an ordered message log, and the
// per-member prediction statistics the scoreboard is derived from.
type Chat struct {
	ID                 int64            `json:"id"`
	Name               string           `json:"name"`
	Type               string           `json:"type"`
	LastMessage        string           `json:"lastMessage"`
	Members            []string         `json:"members"`
	Messages           []MessageEntry   `json:"messages"`
	ScoreSumPerUser    map[string]int64 `json:"scoreSumPerUser"`
	PredictionsPerUser map[string]int64 `json:"predictionsPerUser"`
}

// IDString is the decimal form of the chat id used on the wire and as the
// hashing input for join tokens and push topics.
func (c *Chat) IDString() string {
	return strconv.FormatInt(c.ID, 10)
}

// HasMember reports whether userID is a member of the chat.
func (c *Chat) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// EloOf derives the member's per-chat rating: truncated mean score, or 500
// before the first completed prediction.
func (c *Chat) EloOf(userID string) int64 {
	preds := c.PredictionsPerUser[userID]
	if preds == 0 {
		return 500
	}
	return c.ScoreSumPerUser[userID] / preds
}

// ChatSummary is one element of the chts reply.
type ChatSummary struct {
	Name        string `json:"name"`
	LastMessage string `json:"lastMessage"`
	ChatID      string `json:"chatId"`
	Type        string `json:"type"`
	IconColor   string `json:"iconColor"`
}

// ChatTopic is one element of the tpcs frame, pairing a chat with the
// push-notification topic clients subscribe to.
type ChatTopic struct {
	ChatID string `json:"chatId"`
	Topic  string `json:"topic"`
}

// MemberInfo is one element of the memb reply.
type MemberInfo struct {
	Profile
	Elo int64 `json:"elo"`
}
