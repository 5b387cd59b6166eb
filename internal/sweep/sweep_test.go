package sweep

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/ride-share/internal/models"
	"github.com/example/ride-share/internal/notify"
	"github.com/example/ride-share/internal/storage"
)

type reminderRecorder struct {
	sends []notify.Destination
	data  []map[string]string
}

func (r *reminderRecorder) Send(_ context.Context, dest notify.Destination, _, _ string, data map[string]string) error {
	r.sends = append(r.sends, dest)
	r.data = append(r.data, data)
	return nil
}

var sweepNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func sweepService(t *testing.T, rec *reminderRecorder) (*Service, *storage.MemoryStore) {
	t.Helper()
	st := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	for _, u := range []*models.User{
		{ID: "poster", Name: "Pat", FCMToken: "tok-poster"},
		{ID: "rider", Name: "Ana", FCMToken: "tok-rider"},
	} {
		if err := st.SaveUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	return &Service{
		Store:  st,
		Bridge: notify.NewBridge(rec, logger),
		Logger: logger,
		Now:    func() time.Time { return sweepNow },
	}, st
}

func staleRide(t *testing.T, st *storage.MemoryStore, id string, age time.Duration) *models.Ride {
	t.Helper()
	r := &models.Ride{
		ID: id, PosterID: "poster", From: "Alpha", To: "Beta",
		Date: sweepNow.AddDate(0, 0, 1), Time: "09:00",
		TotalSeats: 2, AvailableSeats: 2, IsActive: true,
	}
	r.AddInterest("rider", sweepNow.Add(-age))
	if err := st.SaveRide(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestReminderWindowSelection(t *testing.T) {
	rec := &reminderRecorder{}
	s, st := sweepService(t, rec)

	staleRide(t, st, "too-fresh", 9*time.Minute)  // newer than window end
	staleRide(t, st, "in-window", 12*time.Minute) // inside [now-15m, now-10m]
	staleRide(t, st, "too-old", 16*time.Minute)   // older than window start

	if err := s.RunReminderTick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(rec.sends) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(rec.sends))
	}
	if rec.sends[0].UserID != "poster" || rec.data[0]["rideId"] != "in-window" {
		t.Fatalf("wrong reminder: dest=%+v data=%+v", rec.sends[0], rec.data[0])
	}
	if rec.data[0]["type"] != "confirmation_reminder" {
		t.Fatalf("wrong payload type: %q", rec.data[0]["type"])
	}
}

func TestReminderSkipsDecidedInterests(t *testing.T) {
	rec := &reminderRecorder{}
	s, st := sweepService(t, rec)
	ctx := context.Background()

	r := staleRide(t, st, "r1", 12*time.Minute)
	if _, err := st.ConfirmInterest(ctx, r.ID, "rider"); err != nil {
		t.Fatal(err)
	}
	// keep the ride active despite the confirm so window selection still sees it
	stored, _ := st.GetRide(ctx, r.ID)
	stored.IsActive = true
	if err := st.SaveRide(ctx, stored); err != nil {
		t.Fatal(err)
	}

	if err := s.RunReminderTick(ctx); err != nil {
		t.Fatal(err)
	}
	if len(rec.sends) != 0 {
		t.Fatalf("confirmed interest was reminded: %+v", rec.data)
	}
}

func TestReminderSkipsInactiveRides(t *testing.T) {
	rec := &reminderRecorder{}
	s, st := sweepService(t, rec)
	ctx := context.Background()

	r := staleRide(t, st, "r1", 12*time.Minute)
	r.IsActive = false
	if err := st.SaveRide(ctx, r); err != nil {
		t.Fatal(err)
	}

	if err := s.RunReminderTick(ctx); err != nil {
		t.Fatal(err)
	}
	if len(rec.sends) != 0 {
		t.Fatalf("inactive ride was reminded: %+v", rec.data)
	}
}

func TestReminderRepeatsWithoutDedupe(t *testing.T) {
	rec := &reminderRecorder{}
	s, st := sweepService(t, rec)
	ctx := context.Background()
	staleRide(t, st, "r1", 12*time.Minute)

	for i := 0; i < 2; i++ {
		if err := s.RunReminderTick(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if len(rec.sends) != 2 {
		t.Fatalf("expected repeat reminders without dedupe, got %d", len(rec.sends))
	}
}

func TestReminderDedupe(t *testing.T) {
	rec := &reminderRecorder{}
	s, st := sweepService(t, rec)
	s.Dedupe = true
	ctx := context.Background()
	r := staleRide(t, st, "r1", 12*time.Minute)

	for i := 0; i < 2; i++ {
		if err := s.RunReminderTick(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if len(rec.sends) != 1 {
		t.Fatalf("dedupe did not suppress repeat, got %d sends", len(rec.sends))
	}

	stored, err := st.GetRide(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.LastReminderAt == nil || !stored.LastReminderAt.Equal(sweepNow) {
		t.Fatalf("lastReminderAt not stamped: %v", stored.LastReminderAt)
	}
}

func TestExpiryDeletesOnlyPastRides(t *testing.T) {
	rec := &reminderRecorder{}
	s, st := sweepService(t, rec)
	ctx := context.Background()

	mk := func(id string, day int) {
		r := &models.Ride{
			ID: id, PosterID: "poster", From: "A", To: "B",
			Date: sweepNow.AddDate(0, 0, day), Time: "09:00",
			TotalSeats: 1, AvailableSeats: 1, IsActive: true,
		}
		if err := st.SaveRide(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	mk("yesterday", -1)
	mk("last-week", -7)
	mk("today", 0)
	mk("tomorrow", 1)

	n, err := s.RunExpiryTick(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 expired rides, got %d", n)
	}
	for _, id := range []string{"today", "tomorrow"} {
		if _, err := st.GetRide(ctx, id); err != nil {
			t.Errorf("ride %s should survive expiry: %v", id, err)
		}
	}
	for _, id := range []string{"yesterday", "last-week"} {
		if _, err := st.GetRide(ctx, id); err == nil {
			t.Errorf("ride %s should have been deleted", id)
		}
	}
}
