package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/ride-share/internal/notify"
	"github.com/example/ride-share/internal/observability"
	"github.com/example/ride-share/internal/storage"
)

// Service runs the two periodic scans: confirmation reminders for stale
// pending interests and deletion of expired rides.
//
// The reminder selection window is [now-WindowStart, now-WindowEnd]. With the
// default 5 minute tick against a 5 minute window each ride is swept roughly
// once per stale interest; this is best-effort, not exactly-once, and rides
// near a window boundary can be reminded twice unless Dedupe is on.
type Service struct {
	Store  storage.Store
	Bridge *notify.Bridge
	Logger *slog.Logger

	WindowStart time.Duration // default 15m
	WindowEnd   time.Duration // default 10m
	// Dedupe stamps lastReminderAt and skips rides reminded within
	// WindowStart. Off by default to match the observed legacy behavior.
	Dedupe bool

	Now func() time.Time // test hook
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) window() (start, end time.Duration) {
	start, end = s.WindowStart, s.WindowEnd
	if start == 0 {
		start = 15 * time.Minute
	}
	if end == 0 {
		end = 10 * time.Minute
	}
	return start, end
}

// RunReminderTick scans once for rides with stale pending interest and sends
// the poster one reminder per pending entry. Per-ride failures are logged and
// do not stop the scan.
func (s *Service) RunReminderTick(ctx context.Context) error {
	now := s.now()
	start, end := s.window()
	from, to := now.Add(-start), now.Add(-end)

	rides, err := s.Store.StaleInterestRides(ctx, from, to)
	if err != nil {
		return fmt.Errorf("stale interest scan: %w", err)
	}

	reminded := 0
	for _, ride := range rides {
		pending := ride.PendingInterests()
		if len(pending) == 0 {
			continue
		}
		if s.Dedupe && ride.LastReminderAt != nil && now.Sub(*ride.LastReminderAt) < start {
			continue
		}
		poster, err := s.Store.GetUser(ctx, ride.PosterID)
		if err != nil {
			s.Logger.Warn("reminder poster lookup failed", "ride_id", ride.ID, "error", err)
			continue
		}
		for _, in := range pending {
			interested, err := s.Store.GetUser(ctx, in.UserID)
			if err != nil {
				s.Logger.Warn("reminder user lookup failed", "ride_id", ride.ID, "user_id", in.UserID, "error", err)
				continue
			}
			s.Bridge.ConfirmationReminder(ctx, poster, interested, ride)
			observability.RemindersSent.Inc()
			reminded++
		}
		if s.Dedupe {
			if err := s.Store.SetLastReminder(ctx, ride.ID, now); err != nil {
				s.Logger.Warn("set last reminder failed", "ride_id", ride.ID, "error", err)
			}
		}
	}

	s.Logger.Info("confirmation reminder sweep ran", "rides", len(rides), "reminders", reminded, "at", now)
	return nil
}

// RunExpiryTick deletes every ride dated strictly before today's local
// midnight and returns how many were removed.
func (s *Service) RunExpiryTick(ctx context.Context) (int, error) {
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	n, err := s.Store.DeleteRidesBefore(ctx, midnight)
	if err != nil {
		return 0, fmt.Errorf("expiry delete: %w", err)
	}
	observability.RidesExpired.Add(float64(n))
	s.Logger.Info("auto-deleted expired rides", "count", n, "at", now)
	return n, nil
}
