package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/socratic-tutor/internal/domain"
	"github.com/ashureev/socratic-tutor/internal/export"
	"github.com/ashureev/socratic-tutor/internal/identity"
	"github.com/ashureev/socratic-tutor/internal/transcript"
	"github.com/go-chi/chi/v5"
)

// SessionSummary is a session without its messages, for listings.
type SessionSummary struct {
	ID           string    `json:"id"`
	Topic        string    `json:"topic"`
	MessageCount int       `json:"messageCount"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

type sessionTurn struct {
	Session transcript.Session `json:"session"`
	Turn    TurnView           `json:"turn"`
}

// storeErrorMessage maps a transcript error to its status and the text shown
// to clients. Unexpected errors are logged and reported generically.
func storeErrorMessage(err error) (int, string) {
	switch {
	case errors.Is(err, transcript.ErrNotFound):
		return http.StatusNotFound, "Chat session not found"
	case errors.Is(err, transcript.ErrTurnInProgress):
		return http.StatusConflict, "A reply is still being generated for this chat"
	}
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Chat session operation failed", "error", err)
		return status, "Internal server error"
	}
	return status, http.StatusText(status)
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	status, message := storeErrorMessage(err)
	Error(w, status, message)
}

// ListSessions returns the caller's sessions, newest first, and the current one.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	sessions := h.transcripts.List(userID)
	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionSummary{
			ID: s.ID, Topic: s.Topic, MessageCount: len(s.Messages), LastUpdated: s.LastUpdated,
		})
	}

	resp := map[string]interface{}{"sessions": out, "currentId": nil}
	if current, ok := h.transcripts.Current(userID); ok {
		resp["currentId"] = current.ID
	}
	JSON(w, http.StatusOK, resp)
}

// CreateSession starts a session on a topic and records the tutor's opener.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	var req struct {
		Topic string `json:"topic"`
	}
	if err := h.decode(w, r, &req); err != nil || strings.TrimSpace(req.Topic) == "" {
		Error(w, http.StatusBadRequest, "Topic is required")
		return
	}
	if !h.allow(w, userID) {
		return
	}

	sess := h.transcripts.CreateSession(userID, strings.TrimSpace(req.Topic))
	result, err := h.runTurn(r.Context(), userID, sess.ID, "")
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	JSON(w, http.StatusCreated, result)
}

// GetSession returns one session with its messages.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.transcripts.Get(identity.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	JSON(w, http.StatusOK, sess)
}

// DeleteSession removes a session and cancels any turn running on it.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.transcripts.Delete(userID, id); err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.hub.Broadcast(userID, wsEvent{Type: "deleted", SessionID: id})
	w.WriteHeader(http.StatusNoContent)
}

// SwitchSession makes a session current.
func (h *Handler) SwitchSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.transcripts.SwitchTo(identity.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	JSON(w, http.StatusOK, sess)
}

// PostTurn answers within a server-held session.
func (h *Handler) PostTurn(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	var req struct {
		Message string `json:"message"`
	}
	if err := h.decode(w, r, &req); err != nil || strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "Message is required")
		return
	}
	if !h.allow(w, userID) {
		return
	}

	result, err := h.runTurn(r.Context(), userID, chi.URLParam(r, "id"), strings.TrimSpace(req.Message))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	JSON(w, http.StatusOK, result)
}

// runTurn executes one step on a stored session and records it. An empty
// message records only the tutor's reply. If the session is deleted while
// the model is working, the result is dropped and ErrNotFound returned.
func (h *Handler) runTurn(ctx context.Context, userID, sessionID, message string) (sessionTurn, error) {
	turnCtx, done, err := h.transcripts.BeginTurn(ctx, userID, sessionID)
	if err != nil {
		return sessionTurn{}, err
	}
	defer done()

	// Read under the claim so the context is the one the last turn recorded.
	sess, err := h.transcripts.Get(userID, sessionID)
	if err != nil {
		return sessionTurn{}, err
	}

	var recorded []domain.Message
	if message != "" {
		recorded = append(recorded, h.transcripts.NewMessage(domain.SenderUser, message))
	}

	turn := h.step(turnCtx, sess.Context, sess.Topic, message)
	recorded = append(recorded, h.transcripts.NewMessage(domain.SenderAI, turn.Text()))

	updated, err := h.transcripts.RecordTurn(userID, sessionID, &turn.Context, recorded...)
	if err != nil {
		if errors.Is(err, transcript.ErrNotFound) {
			slog.Info("Dropped reply for deleted chat session", "user_id", userID, "session_id", sessionID)
		}
		return sessionTurn{}, err
	}

	result := sessionTurn{Session: updated, Turn: turnView(turn)}
	h.hub.Broadcast(userID, wsEvent{Type: "reply", SessionID: sessionID, Turn: &result.Turn})
	return result, nil
}

// ExportSession downloads a stored session as PDF (?kind=summary|transcript).
func (h *Handler) ExportSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sess, err := h.transcripts.Get(userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	switch kind := r.URL.Query().Get("kind"); kind {
	case kindTranscript:
		writePDF(w, export.Filename("chat-history", sess.Topic), func(out io.Writer) error {
			return export.RenderTranscript(out, sess.Topic, sess.Messages)
		})
	case kindSummary, "":
		if !h.allow(w, userID) {
			return
		}
		summary, err := h.tutor.Summarize(r.Context(), sess.Topic, sess.Messages)
		if err != nil {
			slog.Error("Failed to generate summary", "user_id", userID, "session_id", sess.ID, "error", err)
			Error(w, http.StatusInternalServerError, "Failed to generate summary")
			return
		}
		writePDF(w, export.Filename("learning-summary", sess.Topic), func(out io.Writer) error {
			return export.RenderSummary(out, sess.Topic, summary)
		})
	default:
		Error(w, http.StatusBadRequest, "kind must be summary or transcript")
	}
}
