package notify

import "context"

// Destination identifies where a notification goes: the user for in-app
// delivery and their FCM token for push delivery. Token may be empty.
type Destination struct {
	UserID string
	Token  string
}

// Sender delivers one push notification.
// Implementations: FCMSender, PushSender (WS-first with FCM fallback).
type Sender interface {
	Send(ctx context.Context, dest Destination, title, body string, data map[string]string) error
}
