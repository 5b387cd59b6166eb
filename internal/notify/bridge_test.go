package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/example/ride-share/internal/models"
)

type countingSender struct {
	calls int
	err   error
}

func (c *countingSender) Send(context.Context, Destination, string, string, map[string]string) error {
	c.calls++
	return c.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBridgeSkipsUsersWithoutToken(t *testing.T) {
	sender := &countingSender{}
	b := NewBridge(sender, discardLogger())

	b.Notify(context.Background(), Destination{UserID: "u1"}, "title", "body", nil)
	if sender.calls != 0 {
		t.Fatal("delivery attempted without a push destination")
	}

	b.Notify(context.Background(), Destination{UserID: "u1", Token: "tok"}, "title", "body", nil)
	if sender.calls != 1 {
		t.Fatalf("expected 1 delivery, got %d", sender.calls)
	}
}

func TestBridgeSwallowsSendFailures(t *testing.T) {
	sender := &countingSender{err: errors.New("fcm down")}
	b := NewBridge(sender, discardLogger())

	// event helpers must not panic or surface the sender error
	poster := &models.User{ID: "p", Name: "Pat", FCMToken: "tok-p"}
	rider := &models.User{ID: "r", Name: "Ana", FCMToken: "tok-r"}
	ride := &models.Ride{ID: "ride-1", From: "A", To: "B"}

	b.InterestExpressed(context.Background(), poster, rider, ride)
	b.SeatConfirmed(context.Background(), rider, poster, ride)
	b.SeatRejected(context.Background(), rider, poster, ride)
	if sender.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", sender.calls)
	}
}
