package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/ride-share/internal/cache"
	"github.com/example/ride-share/internal/ingest"
	"github.com/example/ride-share/internal/models"
	"github.com/example/ride-share/internal/notify"
	"github.com/example/ride-share/internal/observability"
	"github.com/example/ride-share/internal/storage"
)

const (
	ActionConfirm = "confirm"
	ActionReject  = "reject"
)

// EventPublisher pushes lifecycle events onto the event stream.
// *ingest.KafkaProducer implements it; nil disables publishing.
type EventPublisher interface {
	PublishEvent(e ingest.RideEvent) error
}

// Service is the ride lifecycle engine. It is the only component that talks
// to the store; notifications and events are fired after the mutation commits
// and never influence its outcome.
type Service struct {
	Store  storage.Store
	Bridge *notify.Bridge
	Events EventPublisher     // optional
	Cache  cache.ListingCache // optional
	Logger *slog.Logger
	Now    func() time.Time   // test hook, defaults to time.Now

	locks keyedMutex
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) publish(eventType, rideID, actorID, subjectID string) {
	if s.Events == nil {
		return
	}
	e := ingest.RideEvent{Type: eventType, RideID: rideID, ActorID: actorID, SubjectID: subjectID, At: s.now()}
	if err := s.Events.PublishEvent(e); err != nil {
		s.Logger.Warn("event publish failed", "type", eventType, "ride_id", rideID, "error", err)
	}
}

func (s *Service) invalidateListings(ctx context.Context) {
	if s.Cache != nil {
		s.Cache.Invalidate(ctx)
	}
}

// PostRideInput carries the poster-supplied fields for a new ride.
type PostRideInput struct {
	From             string
	To               string
	Date             time.Time
	Time             string
	TotalSeats       int
	PreferredGenders []string
}

func (s *Service) PostRide(ctx context.Context, posterID string, in PostRideInput) (*models.Ride, error) {
	if in.From == "" || in.To == "" || in.Date.IsZero() || in.Time == "" || in.TotalSeats == 0 {
		return nil, models.NewError(models.KindValidation, "from, to, date, time, totalSeats are required")
	}
	if in.TotalSeats < 1 {
		return nil, models.NewError(models.KindValidation, "totalSeats must be at least 1")
	}
	genders := in.PreferredGenders
	if len(genders) == 0 {
		genders = []string{"any"}
	}
	now := s.now()
	ride := &models.Ride{
		ID:               uuid.NewString(),
		PosterID:         posterID,
		From:             in.From,
		To:               in.To,
		Date:             in.Date,
		Time:             in.Time,
		TotalSeats:       in.TotalSeats,
		AvailableSeats:   in.TotalSeats,
		PreferredGenders: genders,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.Store.CreateRide(ctx, ride); err != nil {
		return nil, fmt.Errorf("create ride: %w", err)
	}
	observability.RidesPosted.Inc()
	s.invalidateListings(ctx)
	s.publish("posted", ride.ID, posterID, "")
	return ride, nil
}

// ListFilter mirrors the search query params of the listing endpoints.
type ListFilter struct {
	From     string
	To       string
	Date     *time.Time
	Gender   string
	TimeFrom string
	TimeTo   string
}

func (f ListFilter) cacheKey(prefix string) string {
	date := ""
	if f.Date != nil {
		date = f.Date.Format("2006-01-02")
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s", prefix, f.From, f.To, date, f.Gender, f.TimeFrom, f.TimeTo)
}

func (s *Service) listCached(ctx context.Context, key string, sf storage.RideFilter) ([]*models.Ride, error) {
	if s.Cache != nil {
		if rides, ok := s.Cache.Get(ctx, key); ok {
			return rides, nil
		}
	}
	rides, err := s.Store.ListRides(ctx, sf)
	if err != nil {
		return nil, fmt.Errorf("list rides: %w", err)
	}
	if s.Cache != nil {
		s.Cache.Set(ctx, key, rides)
	}
	return rides, nil
}

// ListRides returns all active rides matching the filter, soonest first.
func (s *Service) ListRides(ctx context.Context, f ListFilter) ([]*models.Ride, error) {
	sf := storage.RideFilter{
		From: f.From, To: f.To, Date: f.Date, Gender: f.Gender,
		TimeFrom: f.TimeFrom, TimeTo: f.TimeTo,
		ActiveOnly: true, Sort: storage.SortDateTimeAsc,
	}
	return s.listCached(ctx, f.cacheKey("all"), sf)
}

// ListDashboardRides is ListRides minus the requester's own postings.
func (s *Service) ListDashboardRides(ctx context.Context, requesterID string, f ListFilter) ([]*models.Ride, error) {
	sf := storage.RideFilter{
		From: f.From, To: f.To, Date: f.Date, Gender: f.Gender,
		TimeFrom: f.TimeFrom, TimeTo: f.TimeTo,
		ActiveOnly: true, ExcludePoster: requesterID, Sort: storage.SortDateTimeAsc,
	}
	return s.listCached(ctx, f.cacheKey("dash|"+requesterID), sf)
}

// ListTodayRides returns today's active rides ordered by departure time.
func (s *Service) ListTodayRides(ctx context.Context) ([]*models.Ride, error) {
	today := s.now()
	sf := storage.RideFilter{ActiveOnly: true, Date: &today, Sort: storage.SortTimeAsc}
	return s.listCached(ctx, "today|"+today.Format("2006-01-02"), sf)
}

// ListMyRides returns every ride the user posted, newest travel date first,
// active or not.
func (s *Service) ListMyRides(ctx context.Context, posterID string) ([]*models.Ride, error) {
	rides, err := s.Store.ListRides(ctx, storage.RideFilter{PosterID: posterID, Sort: storage.SortDateDesc})
	if err != nil {
		return nil, fmt.Errorf("list my rides: %w", err)
	}
	return rides, nil
}

// ListTravelBuddies resolves the user's buddy set to full user records.
func (s *Service) ListTravelBuddies(ctx context.Context, userID string) ([]*models.User, error) {
	u, err := s.Store.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, models.NewError(models.KindNotFound, "user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	buddies := make([]*models.User, 0, len(u.TravelBuddies))
	for _, id := range u.TravelBuddies {
		b, err := s.Store.GetUser(ctx, id)
		if err != nil {
			s.Logger.Warn("buddy lookup failed", "user_id", id, "error", err)
			continue
		}
		buddies = append(buddies, b)
	}
	return buddies, nil
}

// ExpressInterest records the requester's interest and notifies the poster.
func (s *Service) ExpressInterest(ctx context.Context, rideID, requesterID string) error {
	unlock := s.locks.lock(rideID)
	defer unlock()

	ride, err := s.Store.GetRide(ctx, rideID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.NewError(models.KindNotFound, "ride not found or no longer active")
	}
	if err != nil {
		return fmt.Errorf("get ride: %w", err)
	}
	if !ride.IsActive {
		return models.NewError(models.KindNotFound, "ride not found or no longer active")
	}
	if err := ride.CanExpressInterest(requesterID); err != nil {
		return err
	}
	if err := s.Store.AddInterest(ctx, rideID, requesterID, s.now()); err != nil {
		return fmt.Errorf("add interest: %w", err)
	}

	observability.Interests.Inc()
	s.invalidateListings(ctx)
	s.publish("interest", rideID, requesterID, "")

	poster, requester, err := s.loadPair(ctx, ride.PosterID, requesterID)
	if err != nil {
		s.Logger.Warn("skipping interest notification", "ride_id", rideID, "error", err)
		return nil
	}
	s.Bridge.InterestExpressed(ctx, poster, requester, ride)
	return nil
}

// ConfirmOrReject applies the poster's decision on a pending interest.
// Confirm returns the ride with its post-decrement seat count.
func (s *Service) ConfirmOrReject(ctx context.Context, rideID, posterID, interestedUserID, action string) (*models.Ride, error) {
	if action != ActionConfirm && action != ActionReject {
		return nil, models.NewError(models.KindValidation, "action must be 'confirm' or 'reject'")
	}

	unlock := s.locks.lock(rideID)
	defer unlock()

	ride, err := s.Store.GetRide(ctx, rideID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, models.NewError(models.KindNotFound, "ride not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get ride: %w", err)
	}
	if ride.PosterID != posterID {
		return nil, models.NewError(models.KindForbidden, "only the ride poster can confirm or reject")
	}
	in := ride.FindInterest(interestedUserID)
	if in == nil {
		return nil, models.NewError(models.KindNotFound, "interest record not found")
	}
	if in.Status == models.StatusConfirmed {
		return nil, models.NewError(models.KindAlreadyConfirmed, "user already confirmed")
	}

	if action == ActionReject {
		if in.Status == models.StatusRejected {
			// repeating a reject is a bookkeeping no-op
			return ride, nil
		}
		if err := s.Store.RejectInterest(ctx, rideID, interestedUserID); err != nil {
			return nil, mapDecisionErr(err)
		}
		in.Status = models.StatusRejected
		observability.Rejections.Inc()
		s.publish("rejected", rideID, posterID, interestedUserID)
		s.notifyDecision(ctx, ride, posterID, interestedUserID, false)
		return ride, nil
	}

	updated, err := s.Store.ConfirmInterest(ctx, rideID, interestedUserID)
	if err != nil {
		return nil, mapDecisionErr(err)
	}
	// mutual buddy link, idempotent set union across both users; attempted
	// even if it races with another writer
	if err := s.Store.LinkTravelBuddies(ctx, posterID, interestedUserID); err != nil {
		s.Logger.Error("buddy link failed", "ride_id", rideID, "poster", posterID, "buddy", interestedUserID, "error", err)
	}

	observability.Confirmations.Inc()
	s.invalidateListings(ctx)
	s.publish("confirmed", rideID, posterID, interestedUserID)
	s.notifyDecision(ctx, updated, posterID, interestedUserID, true)
	return updated, nil
}

func mapDecisionErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return models.NewError(models.KindNotFound, "interest record not found")
	case errors.Is(err, storage.ErrAlreadyDecided):
		return models.NewError(models.KindAlreadyConfirmed, "user already confirmed")
	case errors.Is(err, storage.ErrNoSeats):
		return models.NewError(models.KindNoSeats, "no seats available")
	default:
		return fmt.Errorf("apply decision: %w", err)
	}
}

func (s *Service) notifyDecision(ctx context.Context, ride *models.Ride, posterID, interestedUserID string, confirmed bool) {
	poster, interested, err := s.loadPair(ctx, posterID, interestedUserID)
	if err != nil {
		s.Logger.Warn("skipping decision notification", "ride_id", ride.ID, "error", err)
		return
	}
	if confirmed {
		s.Bridge.SeatConfirmed(ctx, interested, poster, ride)
	} else {
		s.Bridge.SeatRejected(ctx, interested, poster, ride)
	}
}

// ChatRequest notifies the poster with the requester's contact details and
// returns the poster's phone number. No ride state changes.
func (s *Service) ChatRequest(ctx context.Context, rideID, requesterID string) (string, error) {
	ride, err := s.Store.GetRide(ctx, rideID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", models.NewError(models.KindNotFound, "ride not found or inactive")
	}
	if err != nil {
		return "", fmt.Errorf("get ride: %w", err)
	}
	if !ride.IsActive {
		return "", models.NewError(models.KindNotFound, "ride not found or inactive")
	}
	poster, requester, err := s.loadPair(ctx, ride.PosterID, requesterID)
	if err != nil {
		return "", fmt.Errorf("load users: %w", err)
	}
	s.Bridge.ChatRequested(ctx, poster, requester, ride)
	return poster.Phone, nil
}

// DeleteRide removes the poster's own ride.
func (s *Service) DeleteRide(ctx context.Context, rideID, requesterID string) error {
	unlock := s.locks.lock(rideID)
	defer unlock()

	ride, err := s.Store.GetRide(ctx, rideID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.NewError(models.KindNotFound, "ride not found")
	}
	if err != nil {
		return fmt.Errorf("get ride: %w", err)
	}
	if ride.PosterID != requesterID {
		return models.NewError(models.KindForbidden, "you can only delete your own ride")
	}
	if err := s.Store.DeleteRide(ctx, rideID); err != nil {
		return fmt.Errorf("delete ride: %w", err)
	}
	observability.RidesDeleted.Inc()
	s.invalidateListings(ctx)
	s.publish("deleted", rideID, requesterID, "")
	return nil
}

func (s *Service) loadPair(ctx context.Context, aID, bID string) (*models.User, *models.User, error) {
	a, err := s.Store.GetUser(ctx, aID)
	if err != nil {
		return nil, nil, fmt.Errorf("get user %s: %w", aID, err)
	}
	b, err := s.Store.GetUser(ctx, bID)
	if err != nil {
		return nil, nil, fmt.Errorf("get user %s: %w", bID, err)
	}
	return a, b, nil
}
