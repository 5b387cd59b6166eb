package models

import "time"

type InterestStatus string

const (
	StatusInterested InterestStatus = "interested"
	StatusConfirmed  InterestStatus = "confirmed"
	StatusRejected   InterestStatus = "rejected"
)

// allowedTransitions is the full state machine for an interest entry.
// Confirmed and rejected are terminal.
var allowedTransitions = map[InterestStatus][]InterestStatus{
	StatusInterested: {StatusConfirmed, StatusRejected},
	StatusConfirmed:  {},
	StatusRejected:   {},
}

// CanTransitionTo reports whether moving from s to next is a legal transition.
func (s InterestStatus) CanTransitionTo(next InterestStatus) bool {
	for _, t := range allowedTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Interest is one user's request to join a ride. Entries are append-only;
// they change status but are never removed.
type Interest struct {
	UserID    string         `json:"userId"`
	Status    InterestStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
}

type User struct {
	ID            string    `json:"id"`
	AuthUID       string    `json:"-"` // stable subject from the identity provider
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	Name          string    `json:"name"`
	Gender        string    `json:"gender"` // male, female, other
	FCMToken      string    `json:"-"`      // empty means no push destination
	TravelBuddies []string  `json:"travelBuddies,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Ride struct {
	ID               string     `json:"id"`
	PosterID         string     `json:"posterId"`
	From             string     `json:"from"`
	To               string     `json:"to"`
	Date             time.Time  `json:"date"`
	Time             string     `json:"time"` // "HH:MM", compared lexically
	TotalSeats       int        `json:"totalSeats"`
	AvailableSeats   int        `json:"availableSeats"`
	PreferredGenders []string   `json:"preferredGenders"` // contains "any" when open to all
	Interests        []Interest `json:"interests"`
	IsActive         bool       `json:"isActive"`
	LastInterestAt   *time.Time `json:"lastInterestAt,omitempty"`
	LastReminderAt   *time.Time `json:"lastReminderAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// FindInterest returns a pointer into the ride's interest ledger for userID,
// or nil if the user never expressed interest.
func (r *Ride) FindInterest(userID string) *Interest {
	for i := range r.Interests {
		if r.Interests[i].UserID == userID {
			return &r.Interests[i]
		}
	}
	return nil
}

// CanExpressInterest checks every precondition for a new interest entry.
// It does not mutate the ride.
func (r *Ride) CanExpressInterest(userID string) error {
	if r.PosterID == userID {
		return NewError(KindSelfInterest, "you cannot join your own ride")
	}
	if !r.IsActive {
		return NewError(KindRideInactive, "ride is no longer active")
	}
	if r.FindInterest(userID) != nil {
		return NewError(KindDuplicateInterest, "you have already expressed interest in this ride")
	}
	if r.AvailableSeats <= 0 {
		return NewError(KindNoSeats, "no seats available")
	}
	return nil
}

// AddInterest appends a pending interest and stamps lastInterestAt.
// Callers must run CanExpressInterest first.
func (r *Ride) AddInterest(userID string, now time.Time) {
	r.Interests = append(r.Interests, Interest{
		UserID:    userID,
		Status:    StatusInterested,
		CreatedAt: now,
	})
	r.LastInterestAt = &now
}

// PendingInterests returns the entries still awaiting a poster decision.
func (r *Ride) PendingInterests() []Interest {
	var out []Interest
	for _, in := range r.Interests {
		if in.Status == StatusInterested {
			out = append(out, in)
		}
	}
	return out
}

// HasBuddy reports whether buddyID is already in the user's buddy set.
func (u *User) HasBuddy(buddyID string) bool {
	for _, b := range u.TravelBuddies {
		if b == buddyID {
			return true
		}
	}
	return false
}

// AddBuddy adds buddyID with set semantics; adding an existing buddy is a no-op.
func (u *User) AddBuddy(buddyID string) {
	if !u.HasBuddy(buddyID) {
		u.TravelBuddies = append(u.TravelBuddies, buddyID)
	}
}
