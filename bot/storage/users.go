package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"bookingbot/core/logger"
)

// UserStore persists bot users.
type UserStore interface {
	// Get returns the user or nil when no record exists.
	Get(ctx context.Context, id int64) (*User, error)
	// Save inserts the user or updates username and email in place.
	Save(ctx context.Context, user *User) error
}

type userStore struct {
	db *sqlx.DB
}

// NewUserStore returns a Postgres-backed UserStore.
func NewUserStore(db *sqlx.DB) UserStore {
	return &userStore{db: db}
}

func (s *userStore) Get(ctx context.Context, id int64) (*User, error) {
	var user User
	err := s.db.GetContext(ctx, &user,
		`SELECT id, username, email FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("users: get %d: %w", id, err)
	}
	return &user, nil
}

func (s *userStore) Save(ctx context.Context, user *User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, email = EXCLUDED.email`,
		user.ID, user.Username, user.Email)
	if err != nil {
		return fmt.Errorf("users: save %d: %w", user.ID, err)
	}
	logger.SVCUsers.Info("user saved",
		slog.String("event", "user.saved"),
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return nil
}
