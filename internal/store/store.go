// Package store provides data persistence interfaces and implementations.
// Only identity data is stored; conversations never touch the database.
package store

import (
	"context"
	"time"

	"github.com/ashureev/socratic-tutor/internal/domain"
)

// Repository defines the interface for persisting users and sign-in sessions.
type Repository interface {
	// GetUser retrieves a user by their user ID. Returns nil, nil if absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// CreateAuthSession stores a new sign-in session.
	CreateAuthSession(ctx context.Context, session *domain.AuthSession) error

	// GetAuthSession retrieves a sign-in session. Returns nil, nil if absent.
	GetAuthSession(ctx context.Context, sessionID string) (*domain.AuthSession, error)

	// DeleteAuthSession removes a sign-in session.
	DeleteAuthSession(ctx context.Context, sessionID string) error

	// ExpiredAuthSessions lists sign-in sessions that expired at or before now.
	ExpiredAuthSessions(ctx context.Context, now time.Time) ([]*domain.AuthSession, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
