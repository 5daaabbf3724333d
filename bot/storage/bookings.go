package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bookingbot/core/logger"
)

// BookingStore persists bookings.
type BookingStore interface {
	// Create inserts a dateless draft attached to the user.
	Create(ctx context.Context, userID int64) (*Booking, error)
	// SetDate fills in the booking date of a draft.
	SetDate(ctx context.Context, ref string, date time.Time) error
	// Delete removes a booking, draft or not.
	Delete(ctx context.Context, ref string) error
}

type bookingStore struct {
	db *sqlx.DB
}

// NewBookingStore returns a Postgres-backed BookingStore.
func NewBookingStore(db *sqlx.DB) BookingStore {
	return &bookingStore{db: db}
}

func (s *bookingStore) Create(ctx context.Context, userID int64) (*Booking, error) {
	booking := &Booking{
		Ref:    uuid.NewString(),
		UserID: userID,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bookings (ref, user_id) VALUES ($1, $2)`,
		booking.Ref, booking.UserID)
	if err != nil {
		return nil, fmt.Errorf("bookings: create for user %d: %w", userID, err)
	}
	logger.SVCBookings.Info("booking draft created",
		slog.String("event", "booking.draft"),
		slog.String("booking_ref", booking.Ref),
		slog.Int64("user_id", userID),
	)
	return booking, nil
}

func (s *bookingStore) SetDate(ctx context.Context, ref string, date time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bookings SET booking_date = $1 WHERE ref = $2`, date, ref)
	if err != nil {
		return fmt.Errorf("bookings: set date on %s: %w", ref, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("bookings: set date on %s: %w", ref, sql.ErrNoRows)
	}
	logger.SVCBookings.Info("booking date set",
		slog.String("event", "booking.dated"),
		slog.String("booking_ref", ref),
	)
	return nil
}

func (s *bookingStore) Delete(ctx context.Context, ref string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bookings WHERE ref = $1`, ref); err != nil {
		return fmt.Errorf("bookings: delete %s: %w", ref, err)
	}
	return nil
}
