package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/socratic-tutor/internal/domain"
	"github.com/ashureev/socratic-tutor/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	writeRetries    = 3
	writeRetryDelay = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode lets readers proceed during writes.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		email TEXT,
		name TEXT NOT NULL,
		picture TEXT,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		session_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_auth_sessions_expires ON auth_sessions(expires_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, email, name, picture, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	var user domain.User
	var email, picture sql.NullString
	var lastSeen, createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.UserID, &email, &user.Name, &picture,
		&lastSeen, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.Email = email.String
	user.Picture = picture.String
	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, email, name, picture, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		email = excluded.email,
		name = excluded.name,
		picture = excluded.picture,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	err := shared.RetryOnConflict(ctx, writeRetries, writeRetryDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			user.UserID, nullable(user.Email), user.Name, nullable(user.Picture),
			user.LastSeenAt.Unix(), user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}
	return nil
}

// CreateAuthSession stores a new sign-in session.
func (s *SQLiteStore) CreateAuthSession(ctx context.Context, session *domain.AuthSession) error {
	query := `INSERT INTO auth_sessions (session_id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`

	err := shared.RetryOnConflict(ctx, writeRetries, writeRetryDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			session.SessionID, session.UserID, session.ExpiresAt.Unix(), session.CreatedAt.Unix())
		return err
	})
	if err != nil {
		return fmt.Errorf("create auth session: %w", err)
	}
	return nil
}

// GetAuthSession retrieves a sign-in session.
func (s *SQLiteStore) GetAuthSession(ctx context.Context, sessionID string) (*domain.AuthSession, error) {
	query := `SELECT session_id, user_id, expires_at, created_at FROM auth_sessions WHERE session_id = ?`

	var session domain.AuthSession
	var expiresAt, createdAt int64
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&session.SessionID, &session.UserID, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan auth session: %w", err)
	}

	session.ExpiresAt = time.Unix(expiresAt, 0)
	session.CreatedAt = time.Unix(createdAt, 0)
	return &session, nil
}

// DeleteAuthSession removes a sign-in session.
func (s *SQLiteStore) DeleteAuthSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete auth session: %w", err)
	}
	return nil
}

// ExpiredAuthSessions lists sign-in sessions that expired at or before now.
func (s *SQLiteStore) ExpiredAuthSessions(ctx context.Context, now time.Time) ([]*domain.AuthSession, error) {
	query := `
		SELECT session_id, user_id, expires_at, created_at
		FROM auth_sessions WHERE expires_at <= ? ORDER BY expires_at`

	rows, err := s.db.QueryContext(ctx, query, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("query expired auth sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close expired auth session rows", "error", closeErr)
		}
	}()

	var sessions []*domain.AuthSession
	for rows.Next() {
		var session domain.AuthSession
		var expiresAt, createdAt int64
		if err := rows.Scan(&session.SessionID, &session.UserID, &expiresAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan expired auth session: %w", err)
		}
		session.ExpiresAt = time.Unix(expiresAt, 0)
		session.CreatedAt = time.Unix(createdAt, 0)
		sessions = append(sessions, &session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired auth sessions: %w", err)
	}
	return sessions, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
