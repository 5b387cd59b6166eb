package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/example/ride-share/internal/models"
)

// PostgresStore persists rides and users in Postgres. Interests live in their
// own table keyed by (ride_id, user_id), which gives the uniqueness invariant
// for free and lets the confirm path run as a conditional update.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) CreateRide(ctx context.Context, r *models.Ride) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO rides (id, poster_id, from_location, to_location, travel_date, travel_time,
			total_seats, available_seats, preferred_genders, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		r.ID, r.PosterID, r.From, r.To, r.Date, r.Time,
		r.TotalSeats, r.AvailableSeats, pq.Array(r.PreferredGenders), r.IsActive, r.CreatedAt, r.UpdatedAt)
	return err
}

const rideCols = `id, poster_id, from_location, to_location, travel_date, travel_time,
	total_seats, available_seats, preferred_genders, is_active,
	last_interest_at, last_reminder_at, created_at, updated_at`

func (p *PostgresStore) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+rideCols+` FROM rides WHERE id = $1`, id)
	r, err := scanRide(row)
	if err != nil {
		return nil, err
	}
	if err := p.attachInterests(ctx, []*models.Ride{r}); err != nil {
		return nil, err
	}
	return r, nil
}

func (p *PostgresStore) ListRides(ctx context.Context, f RideFilter) ([]*models.Ride, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.ActiveOnly {
		where = append(where, "is_active")
	}
	if f.PosterID != "" {
		where = append(where, "poster_id = "+arg(f.PosterID))
	}
	if f.ExcludePoster != "" {
		where = append(where, "poster_id <> "+arg(f.ExcludePoster))
	}
	if f.From != "" {
		where = append(where, "from_location ILIKE "+arg("%"+f.From+"%"))
	}
	if f.To != "" {
		where = append(where, "to_location ILIKE "+arg("%"+f.To+"%"))
	}
	if f.Date != nil {
		where = append(where, "travel_date = "+arg(f.Date.Format("2006-01-02")))
	}
	if f.Gender != "" {
		where = append(where, "preferred_genders && "+arg(pq.Array([]string{f.Gender, "any"})))
	}
	if f.TimeFrom != "" {
		where = append(where, "travel_time >= "+arg(f.TimeFrom))
	}
	if f.TimeTo != "" {
		where = append(where, "travel_time <= "+arg(f.TimeTo))
	}

	q := `SELECT ` + rideCols + ` FROM rides`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	switch f.Sort {
	case SortDateDesc:
		q += " ORDER BY travel_date DESC"
	case SortTimeAsc:
		q += " ORDER BY travel_time ASC"
	default:
		q += " ORDER BY travel_date ASC, travel_time ASC"
	}

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := p.attachInterests(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddInterest is deliberately append-only. Writing seats, activity, or
// interest statuses from a loaded snapshot here would let a stale reader
// undo a concurrent confirm; the only ride columns it touches are the
// interest timestamps.
func (p *PostgresStore) AddInterest(ctx context.Context, rideID, userID string, at time.Time) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO ride_interests (ride_id, user_id, status, created_at)
		VALUES ($1,$2,'interested',$3)
		ON CONFLICT (ride_id, user_id) DO NOTHING`, rideID, userID, at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// lost a race against an identical interest; nothing to change
		return nil
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE rides SET last_interest_at=$2, updated_at=now() WHERE id=$1`, rideID, at)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) DeleteRide(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM rides WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) DeleteRidesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM rides WHERE travel_date < $1`, cutoff.Format("2006-01-02"))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (p *PostgresStore) StaleInterestRides(ctx context.Context, from, to time.Time) ([]*models.Ride, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+rideCols+` FROM rides
		WHERE is_active AND last_interest_at BETWEEN $1 AND $2`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := p.attachInterests(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *PostgresStore) SetLastReminder(ctx context.Context, rideID string, at time.Time) error {
	_, err := p.db.ExecContext(ctx, `UPDATE rides SET last_reminder_at=$2 WHERE id=$1`, rideID, at)
	return err
}

func (p *PostgresStore) ConfirmInterest(ctx context.Context, rideID, userID string) (*models.Ride, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE ride_interests SET status='confirmed'
		WHERE ride_id=$1 AND user_id=$2 AND status='interested'`, rideID, userID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, p.decideMiss(ctx, rideID, userID)
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE rides SET available_seats = available_seats - 1,
			is_active = available_seats - 1 > 0, updated_at = now()
		WHERE id=$1 AND available_seats > 0`, rideID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNoSeats
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p.GetRide(ctx, rideID)
}

func (p *PostgresStore) RejectInterest(ctx context.Context, rideID, userID string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE ride_interests SET status='rejected'
		WHERE ride_id=$1 AND user_id=$2 AND status='interested'`, rideID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return p.decideMiss(ctx, rideID, userID)
	}
	return nil
}

// decideMiss distinguishes "no such interest" from "already decided" after a
// conditional update matched zero rows.
func (p *PostgresStore) decideMiss(ctx context.Context, rideID, userID string) error {
	var status string
	err := p.db.QueryRowContext(ctx,
		`SELECT status FROM ride_interests WHERE ride_id=$1 AND user_id=$2`,
		rideID, userID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrAlreadyDecided
}

func (p *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return p.getUserWhere(ctx, "id = $1", id)
}

func (p *PostgresStore) GetUserByAuthUID(ctx context.Context, authUID string) (*models.User, error) {
	return p.getUserWhere(ctx, "auth_uid = $1", authUID)
}

func (p *PostgresStore) getUserWhere(ctx context.Context, cond string, arg any) (*models.User, error) {
	u := &models.User{}
	var phone, email, fcm sql.NullString
	err := p.db.QueryRowContext(ctx, `
		SELECT id, auth_uid, phone, email, name, gender, fcm_token, created_at, updated_at
		FROM users WHERE `+cond, arg).
		Scan(&u.ID, &u.AuthUID, &phone, &email, &u.Name, &u.Gender, &fcm, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Phone, u.Email, u.FCMToken = phone.String, email.String, fcm.String

	rows, err := p.db.QueryContext(ctx, `SELECT buddy_id FROM travel_buddies WHERE user_id=$1`, u.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		u.TravelBuddies = append(u.TravelBuddies, b)
	}
	return u, rows.Err()
}

func (p *PostgresStore) SaveUser(ctx context.Context, u *models.User) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (id, auth_uid, phone, email, name, gender, fcm_token, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			phone=EXCLUDED.phone, email=EXCLUDED.email, name=EXCLUDED.name,
			gender=EXCLUDED.gender, fcm_token=EXCLUDED.fcm_token, updated_at=EXCLUDED.updated_at`,
		u.ID, u.AuthUID, nullStr(u.Phone), nullStr(u.Email), u.Name, u.Gender,
		nullStr(u.FCMToken), u.CreatedAt, u.UpdatedAt)
	return err
}

func (p *PostgresStore) LinkTravelBuddies(ctx context.Context, userID, buddyID string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO travel_buddies (user_id, buddy_id)
		VALUES ($1,$2), ($2,$1)
		ON CONFLICT DO NOTHING`, userID, buddyID)
	return err
}

// attachInterests loads the interest ledger for a batch of rides in one query.
func (p *PostgresStore) attachInterests(ctx context.Context, rides []*models.Ride) error {
	if len(rides) == 0 {
		return nil
	}
	ids := make([]string, len(rides))
	byID := make(map[string]*models.Ride, len(rides))
	for i, r := range rides {
		ids[i] = r.ID
		byID[r.ID] = r
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT ride_id, user_id, status, created_at FROM ride_interests
		WHERE ride_id = ANY($1) ORDER BY created_at ASC`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var rideID string
		var in models.Interest
		if err := rows.Scan(&rideID, &in.UserID, &in.Status, &in.CreatedAt); err != nil {
			return err
		}
		if r, ok := byID[rideID]; ok {
			r.Interests = append(r.Interests, in)
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*models.Ride, error) {
	r := &models.Ride{}
	var genders pq.StringArray
	var lastInterest, lastReminder sql.NullTime
	err := row.Scan(&r.ID, &r.PosterID, &r.From, &r.To, &r.Date, &r.Time,
		&r.TotalSeats, &r.AvailableSeats, &genders, &r.IsActive,
		&lastInterest, &lastReminder, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.PreferredGenders = genders
	if lastInterest.Valid {
		t := lastInterest.Time
		r.LastInterestAt = &t
	}
	if lastReminder.Valid {
		t := lastReminder.Time
		r.LastReminderAt = &t
	}
	return r, nil
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
