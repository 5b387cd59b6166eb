package models

import (
	"testing"
	"time"
)

func activeRide() *Ride {
	return &Ride{
		ID:             "r1",
		PosterID:       "poster",
		From:           "Alpha",
		To:             "Beta",
		TotalSeats:     2,
		AvailableSeats: 2,
		IsActive:       true,
	}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to InterestStatus
		ok       bool
	}{
		{StatusInterested, StatusConfirmed, true},
		{StatusInterested, StatusRejected, true},
		{StatusConfirmed, StatusRejected, false},
		{StatusConfirmed, StatusInterested, false},
		{StatusRejected, StatusConfirmed, false},
		{StatusRejected, StatusInterested, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.ok {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestCanExpressInterest(t *testing.T) {
	now := time.Now()

	r := activeRide()
	if err := r.CanExpressInterest("poster"); KindOf(err) != KindSelfInterest {
		t.Errorf("own ride: got %v", err)
	}

	r = activeRide()
	r.IsActive = false
	if err := r.CanExpressInterest("u1"); KindOf(err) != KindRideInactive {
		t.Errorf("inactive ride: got %v", err)
	}

	r = activeRide()
	r.AddInterest("u1", now)
	if err := r.CanExpressInterest("u1"); KindOf(err) != KindDuplicateInterest {
		t.Errorf("duplicate: got %v", err)
	}

	r = activeRide()
	r.AvailableSeats = 0
	if err := r.CanExpressInterest("u1"); KindOf(err) != KindNoSeats {
		t.Errorf("no seats: got %v", err)
	}

	r = activeRide()
	if err := r.CanExpressInterest("u1"); err != nil {
		t.Errorf("valid interest rejected: %v", err)
	}
}

func TestAddInterestStampsLastInterestAt(t *testing.T) {
	r := activeRide()
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	r.AddInterest("u1", now)

	if r.LastInterestAt == nil || !r.LastInterestAt.Equal(now) {
		t.Fatalf("lastInterestAt not stamped: %v", r.LastInterestAt)
	}
	in := r.FindInterest("u1")
	if in == nil || in.Status != StatusInterested || !in.CreatedAt.Equal(now) {
		t.Fatalf("unexpected interest entry: %+v", in)
	}
}

func TestPendingInterests(t *testing.T) {
	r := activeRide()
	now := time.Now()
	r.AddInterest("u1", now)
	r.AddInterest("u2", now)
	r.Interests[0].Status = StatusConfirmed

	pending := r.PendingInterests()
	if len(pending) != 1 || pending[0].UserID != "u2" {
		t.Fatalf("expected only u2 pending, got %+v", pending)
	}
}

func TestAddBuddyIsSetUnion(t *testing.T) {
	u := &User{ID: "a"}
	u.AddBuddy("b")
	u.AddBuddy("b")
	if len(u.TravelBuddies) != 1 {
		t.Fatalf("expected 1 buddy, got %v", u.TravelBuddies)
	}
	if !u.HasBuddy("b") {
		t.Fatal("buddy not visible")
	}
}
