package storage

import (
	"context"
	"errors"
	"time"

	"github.com/example/ride-share/internal/models"
)

var (
	// ErrNotFound is returned when a ride or user does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrAlreadyDecided is returned by ConfirmInterest/RejectInterest when the
	// interest is no longer in the "interested" state.
	ErrAlreadyDecided = errors.New("storage: interest already decided")
	// ErrNoSeats is returned by ConfirmInterest when no seat is left to take.
	ErrNoSeats = errors.New("storage: no seats available")
)

// Sort orders for ride listings.
type Sort int

const (
	SortDateTimeAsc Sort = iota // date asc, then time asc
	SortDateDesc                // date desc (my-rides)
	SortTimeAsc                 // time asc only (today)
)

// RideFilter narrows a ride listing. Zero values mean "no constraint".
type RideFilter struct {
	From          string // case-insensitive substring
	To            string // case-insensitive substring
	Date          *time.Time
	Gender        string // matches rides whose preferred set contains it or "any"
	TimeFrom      string
	TimeTo        string
	PosterID      string // only rides posted by this user
	ExcludePoster string // drop rides posted by this user (dashboard)
	ActiveOnly    bool
	Sort          Sort
}

// Store is the persistence boundary for rides and users.
type Store interface {
	CreateRide(ctx context.Context, r *models.Ride) error
	GetRide(ctx context.Context, id string) (*models.Ride, error)
	ListRides(ctx context.Context, f RideFilter) ([]*models.Ride, error)
	// AddInterest appends a pending interest row and stamps lastInterestAt.
	// Append-only: it never rewrites seats, activity, or an existing
	// interest's status, so it cannot undo a concurrent confirm. Adding an
	// interest that already exists is a no-op.
	AddInterest(ctx context.Context, rideID, userID string, at time.Time) error
	DeleteRide(ctx context.Context, id string) error
	// DeleteRidesBefore removes rides dated strictly before cutoff and
	// returns how many were removed.
	DeleteRidesBefore(ctx context.Context, cutoff time.Time) (int, error)
	// StaleInterestRides returns active rides whose lastInterestAt lies in
	// [from, to].
	StaleInterestRides(ctx context.Context, from, to time.Time) ([]*models.Ride, error)
	SetLastReminder(ctx context.Context, rideID string, at time.Time) error

	// ConfirmInterest flips the interest to confirmed and takes one seat,
	// deactivating the ride when the last seat goes. The update is
	// conditional: a concurrent confirm loses with ErrAlreadyDecided and a
	// seat is never taken twice. Returns the ride after the update.
	ConfirmInterest(ctx context.Context, rideID, userID string) (*models.Ride, error)
	// RejectInterest flips the interest to rejected. Seats are untouched.
	RejectInterest(ctx context.Context, rideID, userID string) error

	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByAuthUID(ctx context.Context, authUID string) (*models.User, error)
	SaveUser(ctx context.Context, u *models.User) error
	// LinkTravelBuddies adds each user to the other's buddy set; linking an
	// existing pair is a no-op.
	LinkTravelBuddies(ctx context.Context, userID, buddyID string) error
}
