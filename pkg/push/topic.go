package push

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Topic derives the FCM topic name for a chat. The secret keeps topic
// names unguessable, so only clients that learned the topic through
// membership can subscribe to a chat's notifications.
func Topic(chatID int64, secret string) string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(chatID, 10) + secret))
	return "chat_" + hex.EncodeToString(sum[:])
}
