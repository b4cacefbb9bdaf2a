package services

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strconv"
	"strings"
)

// joinTokenHashChars is how much of the base64 digest survives into
// the token. 16 characters of base64 carry 96 bits, plenty for an
// invite that also requires knowing the server.
const joinTokenHashChars = 16

// joinTokenFor builds the invite token for a chat: a truncated keyed
// digest, a dot, and the base64 chat id. Standard base64 throughout;
// deployed clients do not URL-escape tokens.
func joinTokenFor(chatID int64, secret string) string {
	idStr := strconv.FormatInt(chatID, 10)
	return joinTokenHash(idStr, secret) + "." + base64.StdEncoding.EncodeToString([]byte(idStr))
}

// parseJoinToken validates a presented token and returns the chat id
// it grants. Every malformed or tampered token maps to ErrInvalidToken
// so probing reveals nothing about which part failed.
func parseJoinToken(token, secret string) (int64, error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return 0, ErrInvalidToken
	}
	idBytes, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return 0, ErrInvalidToken
	}
	chatID, err := strconv.ParseInt(string(idBytes), 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	expected := joinTokenHash(string(idBytes), secret)
	if subtle.ConstantTimeCompare([]byte(parts[0]), []byte(expected)) != 1 {
		return 0, ErrInvalidToken
	}
	return chatID, nil
}

func joinTokenHash(chatIDStr, secret string) string {
	sum := sha256.Sum256([]byte(chatIDStr + secret))
	return base64.StdEncoding.EncodeToString(sum[:])[:joinTokenHashChars]
}
