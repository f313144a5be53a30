package identity

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/socratic-tutor/internal/domain"
	"github.com/ashureev/socratic-tutor/internal/store"
	"github.com/go-chi/chi/v5"
)

const (
	stateCookieName = "tutor_oauth_state"
	stateCookieTTL  = 10 * time.Minute
)

// HandlerConfig configures the sign-in routes.
type HandlerConfig struct {
	SessionTTL time.Duration
	Secure     bool
	// AfterSignIn is where the browser lands once signed in or out.
	AfterSignIn string
}

// Handler serves the sign-in, callback, sign-out and session routes.
type Handler struct {
	repo      store.Repository
	provider  Provider
	cfg       HandlerConfig
	onSignOut func(userID string)
}

// NewHandler creates the auth handler. provider may be nil when sign-in is
// not configured; onSignOut may be nil.
func NewHandler(repo store.Repository, provider Provider, cfg HandlerConfig, onSignOut func(userID string)) *Handler {
	if cfg.AfterSignIn == "" {
		cfg.AfterSignIn = "/"
	}
	return &Handler{repo: repo, provider: provider, cfg: cfg, onSignOut: onSignOut}
}

// RegisterRoutes mounts the auth routes under /api/auth.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/signin", h.SignIn)
		r.Get("/callback", h.Callback)
		r.Post("/signout", h.SignOut)
		r.Get("/session", h.Session)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode auth response", "error", err)
	}
}

// SignIn starts the OAuth flow.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Sign-in is not configured"})
		return
	}

	state, err := randomHex(16)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}
	setCookie(w, stateCookieName, state, stateCookieTTL, h.cfg.Secure)
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// Callback completes the OAuth flow and opens a sign-in session.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Sign-in is not configured"})
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid sign-in state"})
		return
	}
	setCookie(w, stateCookieName, "", 0, h.cfg.Secure)

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing authorization code"})
		return
	}

	profile, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		slog.Error("OAuth exchange failed", "provider", h.provider.Name(), "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Sign-in failed"})
		return
	}

	now := time.Now()
	userID := h.provider.Name() + "_" + profile.Subject
	existing, err := h.repo.GetUser(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to load user", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}
	createdAt := now
	if existing != nil {
		createdAt = existing.CreatedAt
	}

	user := &domain.User{
		UserID:     userID,
		Email:      profile.Email,
		Name:       profile.Name,
		Picture:    profile.Picture,
		LastSeenAt: now,
		CreatedAt:  createdAt,
		UpdatedAt:  now,
	}
	if err := h.repo.UpsertUser(r.Context(), user); err != nil {
		slog.Error("Failed to save user", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	token, err := randomHex(32)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}
	session := &domain.AuthSession{
		SessionID: token,
		UserID:    userID,
		ExpiresAt: now.Add(h.cfg.SessionTTL),
		CreatedAt: now,
	}
	if err := h.repo.CreateAuthSession(r.Context(), session); err != nil {
		slog.Error("Failed to create sign-in session", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	slog.Info("User signed in", "user_id", userID)
	setCookie(w, SessionCookieName, token, h.cfg.SessionTTL, h.cfg.Secure)
	http.Redirect(w, r, h.cfg.AfterSignIn, http.StatusFound)
}

// SignOut ends the current sign-in session.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookieName); err == nil && tokenPattern.MatchString(c.Value) {
		session, err := h.repo.GetAuthSession(r.Context(), c.Value)
		if err != nil {
			slog.Warn("Failed to load sign-in session on sign-out", "error", err)
		}
		if err := h.repo.DeleteAuthSession(r.Context(), c.Value); err != nil {
			slog.Error("Failed to delete sign-in session", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
			return
		}
		if session != nil && h.onSignOut != nil {
			h.onSignOut(session.UserID)
		}
	}

	setCookie(w, SessionCookieName, "", 0, h.cfg.Secure)
	writeJSON(w, http.StatusOK, map[string]bool{"signedOut": true})
}

// SessionView describes the caller's sign-in state to the frontend.
type SessionView struct {
	Authenticated bool       `json:"authenticated"`
	Anonymous     bool       `json:"anonymous,omitempty"`
	UserID        string     `json:"userId,omitempty"`
	Name          string     `json:"name,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

// Session reports whether the caller is signed in. It relies on Middleware
// having run first.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := UserIDFromContext(ctx)
	if userID == "" {
		writeJSON(w, http.StatusOK, SessionView{})
		return
	}

	view := SessionView{Authenticated: true, UserID: userID, Name: UsernameFromContext(ctx)}
	sessionID := AuthSessionIDFromContext(ctx)
	if sessionID == "" {
		view.Anonymous = true
		writeJSON(w, http.StatusOK, view)
		return
	}

	session, err := h.repo.GetAuthSession(ctx, sessionID)
	if err != nil {
		slog.Error("Failed to load sign-in session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}
	if session != nil {
		view.ExpiresAt = &session.ExpiresAt
	}
	writeJSON(w, http.StatusOK, view)
}
