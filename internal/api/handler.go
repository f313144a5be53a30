// Package api provides HTTP handlers for the tutor API.
//
//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ashureev/socratic-tutor/internal/domain"
	"github.com/ashureev/socratic-tutor/internal/identity"
	"github.com/ashureev/socratic-tutor/internal/transcript"
	"github.com/ashureev/socratic-tutor/internal/tutor"
	"github.com/containerd/errdefs/pkg/errhttp"
	"github.com/go-chi/chi/v5"
)

const defaultMaxBodySize = 1 << 20

// Tutor runs the dialogue. *tutor.Engine implements it.
type Tutor interface {
	Start(ctx context.Context, topic string) tutor.Turn
	Advance(ctx context.Context, c tutor.Context, answer string) tutor.Turn
	Summarize(ctx context.Context, topic string, messages []domain.Message) (string, error)
}

// Pinger checks a backing dependency, e.g. the database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes a Handler. Zero values select defaults.
type Options struct {
	MaxBodySize    int64
	Model          string
	Limiter        *RateLimiter
	Hub            *Hub
	AllowedOrigins []string
	IsDev          bool
}

// Handler serves the chat, summary, export, session and WebSocket routes.
type Handler struct {
	tutor       Tutor
	transcripts *transcript.Store
	db          Pinger
	limiter     *RateLimiter
	hub         *Hub
	maxBody     int64
	model       string
	origins     []string
	isDev       bool
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(t Tutor, transcripts *transcript.Store, db Pinger, opts Options) *Handler {
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = defaultMaxBodySize
	}
	if opts.Hub == nil {
		opts.Hub = NewHub()
	}
	return &Handler{
		tutor:       t,
		transcripts: transcripts,
		db:          db,
		limiter:     opts.Limiter,
		hub:         opts.Hub,
		maxBody:     opts.MaxBodySize,
		model:       opts.Model,
		origins:     opts.AllowedOrigins,
		isDev:       opts.IsDev,
	}
}

// RegisterRoutes registers the API routes. Everything except health requires
// an identity established by identity.Middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/health", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(identity.RequireUser)

		r.Post("/api/chat", h.HandleChat)
		r.Post("/api/summary", h.HandleSummary)
		r.Post("/api/summary/pdf", h.SummaryPDF)
		r.Post("/api/transcript/pdf", h.TranscriptPDF)

		r.Route("/api/sessions", func(r chi.Router) {
			r.Get("/", h.ListSessions)
			r.Post("/", h.CreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Delete("/", h.DeleteSession)
				r.Post("/current", h.SwitchSession)
				r.Post("/turns", h.PostTurn)
				r.Get("/export", h.ExportSession)
			})
		})

		r.Get("/ws/chat", h.ServeWS)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// StatusFor maps a domain error to an HTTP status.
func StatusFor(err error) int {
	return errhttp.ToHTTP(err)
}

var errBadBody = errors.New("invalid request body")

// decode reads a size-limited JSON body into v.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadBody, err)
	}
	return nil
}

// allow applies the per-user rate limit, writing a 429 when exceeded.
func (h *Handler) allow(w http.ResponseWriter, userID string) bool {
	if h.limiter == nil || h.limiter.Allow(userID) {
		return true
	}
	Error(w, http.StatusTooManyRequests, "Too many requests, please slow down.")
	return false
}
