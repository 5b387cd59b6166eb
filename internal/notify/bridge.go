package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/ride-share/internal/models"
	"github.com/example/ride-share/internal/observability"
)

// Bridge formats lifecycle events into notifications and hands them to the
// Sender. Delivery is best-effort: a failure is logged and counted, never
// returned, so it can never affect the lifecycle mutation that triggered it.
type Bridge struct {
	sender Sender
	logger *slog.Logger
}

func NewBridge(sender Sender, logger *slog.Logger) *Bridge {
	return &Bridge{sender: sender, logger: logger}
}

// Notify is the single delivery point. Users without a push destination are
// skipped silently.
func (b *Bridge) Notify(ctx context.Context, dest Destination, title, body string, data map[string]string) {
	if dest.Token == "" {
		return
	}
	if err := b.sender.Send(ctx, dest, title, body, data); err != nil {
		observability.NotificationFailures.Inc()
		b.logger.Error("notification send failed", "user_id", dest.UserID, "error", err)
		return
	}
	observability.NotificationsSent.Inc()
}

func destFor(u *models.User) Destination {
	return Destination{UserID: u.ID, Token: u.FCMToken}
}

// InterestExpressed tells the poster someone wants to join.
func (b *Bridge) InterestExpressed(ctx context.Context, poster, interested *models.User, ride *models.Ride) {
	b.Notify(ctx, destFor(poster),
		"Someone is interested in your ride!",
		fmt.Sprintf("%s wants to join your ride from %s to %s.", interested.Name, ride.From, ride.To),
		map[string]string{
			"type":               "interest",
			"rideId":             ride.ID,
			"interestedUserId":   interested.ID,
			"interestedUserName": interested.Name,
		})
}

// SeatConfirmed tells the interested user their seat is confirmed.
func (b *Bridge) SeatConfirmed(ctx context.Context, interested, poster *models.User, ride *models.Ride) {
	b.Notify(ctx, destFor(interested),
		"Ride Confirmed!",
		fmt.Sprintf("%s confirmed your seat for the ride from %s to %s.", poster.Name, ride.From, ride.To),
		map[string]string{"type": "confirmed", "rideId": ride.ID})
}

// SeatRejected tells the interested user the poster passed on them.
func (b *Bridge) SeatRejected(ctx context.Context, interested, poster *models.User, ride *models.Ride) {
	b.Notify(ctx, destFor(interested),
		"Ride Update",
		fmt.Sprintf("Unfortunately %s couldn't accommodate you this time.", poster.Name),
		map[string]string{"type": "rejected", "rideId": ride.ID})
}

// ChatRequested forwards a chat request with the requester's contact details.
func (b *Bridge) ChatRequested(ctx context.Context, poster, requester *models.User, ride *models.Ride) {
	b.Notify(ctx, destFor(poster),
		"Someone wants to chat",
		fmt.Sprintf("%s wants to chat about your ride from %s to %s.", requester.Name, ride.From, ride.To),
		map[string]string{
			"type":           "chat_request",
			"rideId":         ride.ID,
			"requesterName":  requester.Name,
			"requesterPhone": requester.Phone,
			"requesterId":    requester.ID,
		})
}

// ConfirmationReminder nudges the poster about a still-pending interest.
func (b *Bridge) ConfirmationReminder(ctx context.Context, poster, interested *models.User, ride *models.Ride) {
	b.Notify(ctx, destFor(poster),
		"Is this ride confirmed?",
		fmt.Sprintf("Is the ride with %s confirmed? Tap to confirm and update your seat count.", interested.Name),
		map[string]string{
			"type":               "confirmation_reminder",
			"rideId":             ride.ID,
			"interestedUserId":   interested.ID,
			"interestedUserName": interested.Name,
		})
}
