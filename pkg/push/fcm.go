package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/calledit/calledit-server/pkg/models"
)

const fallbackTitle = "New Message"

// FCMNotifier publishes notifications through Firebase Cloud
// Messaging.
type FCMNotifier struct {
	client *messaging.Client
}

// NewFCMNotifier initializes the FCM client. With an empty credentials
// file the SDK uses application default credentials.
func NewFCMNotifier(ctx context.Context, credentialsFile string) (*FCMNotifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return &FCMNotifier{client: client}, nil
}

// Notify publishes one notification to the topic.
func (n *FCMNotifier) Notify(ctx context.Context, topic, text string, from models.Profile) error {
	if _, err := n.client.Send(ctx, newMessage(topic, text, from)); err != nil {
		return fmt.Errorf("failed to send notification to topic %s: %w", topic, err)
	}
	return nil
}

// newMessage builds the FCM message. The Android block duplicates the
// cross-platform notification because the Android client renders the
// custom icon, accent color and sound only from AndroidNotification.
func newMessage(topic, text string, from models.Profile) *messaging.Message {
	title := from.DisplayName
	if title == "" {
		title = fallbackTitle
	}
	return &messaging.Message{
		Topic: topic,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Title:    title,
				Icon:     "ic_notification",
				ImageURL: from.PhotoURL,
				Color:    "#0088FF",
				Body:     text,
				Sound:    "default",
			},
		},
		Notification: &messaging.Notification{
			Title:    title,
			Body:     text,
			ImageURL: from.PhotoURL,
		},
	}
}
