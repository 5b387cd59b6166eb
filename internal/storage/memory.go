package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/ride-share/internal/models"
)

// MemoryStore keeps everything in maps. It backs tests and local runs when no
// PG_DSN is configured, mirroring the Postgres store's conditional-update
// semantics under one coarse lock.
type MemoryStore struct {
	mu    sync.RWMutex
	rides map[string]*models.Ride
	users map[string]*models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rides: make(map[string]*models.Ride),
		users: make(map[string]*models.User),
	}
}

func (m *MemoryStore) CreateRide(ctx context.Context, r *models.Ride) error {
	return m.SaveRide(ctx, r)
}

func (m *MemoryStore) GetRide(_ context.Context, id string) (*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRide(r), nil
}

// SaveRide stores the full ride document. Not part of the Store interface;
// tests use it to seed state.
func (m *MemoryStore) SaveRide(_ context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[r.ID] = cloneRide(r)
	return nil
}

func (m *MemoryStore) AddInterest(_ context.Context, rideID, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return ErrNotFound
	}
	if r.FindInterest(userID) != nil {
		return nil
	}
	r.AddInterest(userID, at)
	r.UpdatedAt = at
	return nil
}

func (m *MemoryStore) DeleteRide(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[id]; !ok {
		return ErrNotFound
	}
	delete(m.rides, id)
	return nil
}

func (m *MemoryStore) DeleteRidesBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, r := range m.rides {
		if r.Date.Before(cutoff) {
			delete(m.rides, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) StaleInterestRides(_ context.Context, from, to time.Time) ([]*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Ride
	for _, r := range m.rides {
		if !r.IsActive || r.LastInterestAt == nil {
			continue
		}
		t := *r.LastInterestAt
		if t.Before(from) || t.After(to) {
			continue
		}
		out = append(out, cloneRide(r))
	}
	return out, nil
}

func (m *MemoryStore) SetLastReminder(_ context.Context, rideID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return ErrNotFound
	}
	t := at
	r.LastReminderAt = &t
	return nil
}

func (m *MemoryStore) ConfirmInterest(_ context.Context, rideID, userID string) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return nil, ErrNotFound
	}
	in := r.FindInterest(userID)
	if in == nil {
		return nil, ErrNotFound
	}
	if !in.Status.CanTransitionTo(models.StatusConfirmed) {
		return nil, ErrAlreadyDecided
	}
	if r.AvailableSeats <= 0 {
		return nil, ErrNoSeats
	}
	in.Status = models.StatusConfirmed
	r.AvailableSeats--
	if r.AvailableSeats == 0 {
		r.IsActive = false
	}
	r.UpdatedAt = time.Now()
	return cloneRide(r), nil
}

func (m *MemoryStore) RejectInterest(_ context.Context, rideID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return ErrNotFound
	}
	in := r.FindInterest(userID)
	if in == nil {
		return ErrNotFound
	}
	if !in.Status.CanTransitionTo(models.StatusRejected) {
		return ErrAlreadyDecided
	}
	in.Status = models.StatusRejected
	r.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) ListRides(_ context.Context, f RideFilter) ([]*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Ride
	for _, r := range m.rides {
		if matches(r, f) {
			out = append(out, cloneRide(r))
		}
	}
	sortRides(out, f.Sort)
	return out, nil
}

func matches(r *models.Ride, f RideFilter) bool {
	if f.ActiveOnly && !r.IsActive {
		return false
	}
	if f.PosterID != "" && r.PosterID != f.PosterID {
		return false
	}
	if f.ExcludePoster != "" && r.PosterID == f.ExcludePoster {
		return false
	}
	if f.From != "" && !strings.Contains(strings.ToLower(r.From), strings.ToLower(f.From)) {
		return false
	}
	if f.To != "" && !strings.Contains(strings.ToLower(r.To), strings.ToLower(f.To)) {
		return false
	}
	if f.Date != nil && !sameDay(r.Date, *f.Date) {
		return false
	}
	if f.Gender != "" && !genderMatch(r.PreferredGenders, f.Gender) {
		return false
	}
	if f.TimeFrom != "" && r.Time < f.TimeFrom {
		return false
	}
	if f.TimeTo != "" && r.Time > f.TimeTo {
		return false
	}
	return true
}

func genderMatch(preferred []string, gender string) bool {
	for _, g := range preferred {
		if g == gender || g == "any" {
			return true
		}
	}
	return false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sortRides(rides []*models.Ride, s Sort) {
	switch s {
	case SortDateDesc:
		sort.Slice(rides, func(i, j int) bool { return rides[i].Date.After(rides[j].Date) })
	case SortTimeAsc:
		sort.Slice(rides, func(i, j int) bool { return rides[i].Time < rides[j].Time })
	default:
		sort.Slice(rides, func(i, j int) bool {
			if !rides[i].Date.Equal(rides[j].Date) {
				return rides[i].Date.Before(rides[j].Date)
			}
			return rides[i].Time < rides[j].Time
		})
	}
}

func (m *MemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *MemoryStore) GetUserByAuthUID(_ context.Context, authUID string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.AuthUID == authUID {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) SaveUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = cloneUser(u)
	return nil
}

func (m *MemoryStore) LinkTravelBuddies(_ context.Context, userID, buddyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	b, ok := m.users[buddyID]
	if !ok {
		return ErrNotFound
	}
	a.AddBuddy(buddyID)
	b.AddBuddy(userID)
	return nil
}

func cloneRide(r *models.Ride) *models.Ride {
	c := *r
	c.Interests = append([]models.Interest(nil), r.Interests...)
	c.PreferredGenders = append([]string(nil), r.PreferredGenders...)
	if r.LastInterestAt != nil {
		t := *r.LastInterestAt
		c.LastInterestAt = &t
	}
	if r.LastReminderAt != nil {
		t := *r.LastReminderAt
		c.LastReminderAt = &t
	}
	return &c
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.TravelBuddies = append([]string(nil), u.TravelBuddies...)
	return &c
}
