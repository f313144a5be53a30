// Package identity resolves who is calling: a Google sign-in session, or in
// development an anonymous per-device identity.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/ashureev/socratic-tutor/internal/domain"
	"github.com/ashureev/socratic-tutor/internal/store"
)

const (
	SessionCookieName = "tutor_session"
	AnonCookieName    = "tutor_anon_id"
	anonCookieMaxAge  = 30 * 24 * time.Hour
)

type contextKey int

const (
	userIDKey contextKey = iota
	usernameKey
	authSessionIDKey
)

var (
	anonIDPattern  = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)
	tokenPattern   = regexp.MustCompile(`^[a-f0-9]{64}$`)
	unauthorizedJS = `{"error":"Unauthorized","message":"Please sign in to continue."}`
)

// Options controls how the middleware establishes identity.
type Options struct {
	// AllowAnonymous issues a per-device identity when no sign-in session exists.
	AllowAnonymous bool
	// Secure marks cookies Secure; off in development.
	Secure bool
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// UsernameFromContext extracts the display name from the request context.
func UsernameFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(usernameKey).(string); ok {
		return v
	}
	return ""
}

// AuthSessionIDFromContext returns the sign-in session ID, empty for anonymous users.
func AuthSessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(authSessionIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUser returns a context carrying the given identity.
func WithUser(ctx context.Context, userID, username string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, usernameKey, username)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func generateAnonID() (string, error) {
	id, err := randomHex(16)
	if err != nil {
		return "", fmt.Errorf("generate anonymous id: %w", err)
	}
	return "anon_" + id, nil
}

func deriveUsername(userID string) string {
	if len(userID) > 13 {
		return "anon-" + userID[len(userID)-8:]
	}
	return "anon-user"
}

func ensureAnonUser(ctx context.Context, repo store.Repository, userID string) error {
	user, err := repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user != nil {
		return nil
	}

	now := time.Now()
	return repo.UpsertUser(ctx, &domain.User{
		UserID:     userID,
		Name:       deriveUsername(userID),
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func setCookie(w http.ResponseWriter, name, value string, maxAge time.Duration, secure bool) {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	}
	if maxAge > 0 {
		c.MaxAge = int(maxAge.Seconds())
		c.Expires = time.Now().Add(maxAge)
	} else {
		c.MaxAge = -1
	}
	http.SetCookie(w, c)
}

func getOrCreateAnonID(w http.ResponseWriter, r *http.Request, secure bool) (string, error) {
	if c, err := r.Cookie(AnonCookieName); err == nil && anonIDPattern.MatchString(c.Value) {
		setCookie(w, AnonCookieName, c.Value, anonCookieMaxAge, secure)
		return c.Value, nil
	}

	id, err := generateAnonID()
	if err != nil {
		return "", err
	}
	setCookie(w, AnonCookieName, id, anonCookieMaxAge, secure)
	return id, nil
}

// resolveSession returns the live sign-in session and its user named by the
// request cookie, or nils when there is none.
func resolveSession(ctx context.Context, repo store.Repository, r *http.Request) (*domain.AuthSession, *domain.User, error) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil || !tokenPattern.MatchString(c.Value) {
		return nil, nil, nil
	}

	session, err := repo.GetAuthSession(ctx, c.Value)
	if err != nil || session == nil {
		return nil, nil, err
	}
	if session.Expired(time.Now()) {
		return nil, nil, nil
	}

	user, err := repo.GetUser(ctx, session.UserID)
	if err != nil || user == nil {
		return nil, nil, err
	}
	return session, user, nil
}

// Middleware injects the caller's identity into the request context.
// Requests without a sign-in session pass through unauthenticated unless
// anonymous access is enabled.
func Middleware(repo store.Repository, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, user, err := resolveSession(r.Context(), repo, r)
			if err != nil {
				slog.Error("Failed to resolve sign-in session", "error", err)
				http.Error(w, `{"error":"failed to resolve session"}`, http.StatusInternalServerError)
				return
			}

			if session != nil {
				if err := repo.UpdateLastSeen(r.Context(), user.UserID, time.Now()); err != nil {
					slog.Warn("Failed to update last seen", "user_id", user.UserID, "error", err)
				}
				ctx := WithUser(r.Context(), user.UserID, user.DisplayName())
				ctx = context.WithValue(ctx, authSessionIDKey, session.SessionID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if !opts.AllowAnonymous {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := getOrCreateAnonID(w, r, opts.Secure)
			if err != nil {
				http.Error(w, `{"error":"failed to establish anonymous identity"}`, http.StatusInternalServerError)
				return
			}
			if err := ensureAnonUser(r.Context(), repo, userID); err != nil {
				http.Error(w, `{"error":"failed to initialize anonymous user"}`, http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID, deriveUsername(userID))))
		})
	}
}

// RequireUser rejects requests that carry no identity with a "please sign in" 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserIDFromContext(r.Context()) == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(unauthorizedJS))
			return
		}
		next.ServeHTTP(w, r)
	})
}
