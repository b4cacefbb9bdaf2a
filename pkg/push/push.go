// Package push sends mobile push notifications for chat activity.
// Delivery is keyed by FCM topic rather than device token: every chat
// has a derived topic, clients subscribe to the topics of their chats,
// and the server never stores device registrations.
package push

import (
	"context"
	"log/slog"

	"github.com/calledit/calledit-server/pkg/models"
)

// Notifier delivers one notification about a message to a chat topic.
// The profile is the sender's; it supplies the notification title and
// icon image.
type Notifier interface {
	Notify(ctx context.Context, topic, text string, from models.Profile) error
}

// NoopNotifier drops notifications. Used when no Firebase credentials
// are configured, typically in development and tests.
type NoopNotifier struct{}

func (NoopNotifier) Notify(_ context.Context, topic, _ string, _ models.Profile) error {
	slog.Debug("Push notifications disabled, dropping notification", "topic", topic)
	return nil
}
