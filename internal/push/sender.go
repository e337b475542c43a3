package push

import (
	"context"
	"fmt"
	"regexp"

	"firebase.google.com/go/v4/messaging"
)

// Sender delivers a push notification to every device of a tenant.
type Sender interface {
	Send(ctx context.Context, tenantID, title, body string, data map[string]string) error
}

// Client is the slice of the FCM client that is used.
type Client interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender publishes to a per-tenant FCM topic that the dentist's devices
// subscribe to at sign-in.
type FCMSender struct {
	client Client
}

func NewFCMSender(client Client) *FCMSender {
	return &FCMSender{client: client}
}

var topicUnsafe = regexp.MustCompile(`[^a-zA-Z0-9-_.~%]`)

// Topic is the FCM topic name for a tenant.
func Topic(tenantID string) string {
	return "tenant-" + topicUnsafe.ReplaceAllString(tenantID, "_")
}

func (s *FCMSender) Send(ctx context.Context, tenantID, title, body string, data map[string]string) error {
	msg := &messaging.Message{
		Topic: Topic(tenantID),
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}
	if _, err := s.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}
	return nil
}

type NoopSender struct{}

func (NoopSender) Send(context.Context, string, string, string, map[string]string) error { return nil }
