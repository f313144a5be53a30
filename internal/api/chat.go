package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/socratic-tutor/internal/domain"
	"github.com/ashureev/socratic-tutor/internal/identity"
	"github.com/ashureev/socratic-tutor/internal/markup"
	"github.com/ashureev/socratic-tutor/internal/tutor"
)

// ReplyView is the structured form of a tutor reply.
type ReplyView struct {
	Kind      tutor.Kind `json:"kind"`
	Feedback  string     `json:"feedback,omitempty"`
	Questions []string   `json:"questions,omitempty"`
	Question  string     `json:"question,omitempty"`
	Hint      string     `json:"hint,omitempty"`
	FollowUp  string     `json:"followUp,omitempty"`
	Summary   string     `json:"summary,omitempty"`
	NextStep  string     `json:"nextStep,omitempty"`
}

func replyView(r tutor.Reply) ReplyView {
	v := ReplyView{Kind: r.Kind()}
	switch r := r.(type) {
	case tutor.Opening:
		v.Questions = r.Questions
		v.Hint = r.Hint
	case tutor.Probe:
		v.Feedback = r.Feedback
		v.Question = r.Question
		v.Hint = r.Hint
		v.FollowUp = r.FollowUp
	case tutor.Wrapup:
		v.Feedback = r.Feedback
		v.Summary = r.Summary
		v.NextStep = r.NextStep
	}
	return v
}

// TurnView is the wire form of one dialogue step.
type TurnView struct {
	// Response is the combined reply text, as the original clients expect.
	Response   string            `json:"response"`
	Context    tutor.Context     `json:"context"`
	Reply      ReplyView         `json:"reply"`
	Parsed     markup.Response   `json:"parsed"`
	Assessment *tutor.Assessment `json:"assessment,omitempty"`
	Degraded   bool              `json:"degraded"`
	Fallbacks  []tutor.Stage     `json:"fallbacks,omitempty"`
}

func turnView(t tutor.Turn) TurnView {
	text := t.Text()
	return TurnView{
		Response:   text,
		Context:    t.Context,
		Reply:      replyView(t.Reply),
		Parsed:     markup.Parse(text),
		Assessment: t.Assessment,
		Degraded:   t.Degraded(),
		Fallbacks:  t.Fallbacks,
	}
}

// step opens the topic when there is no context yet, otherwise advances it.
func (h *Handler) step(ctx context.Context, c *tutor.Context, topic, message string) tutor.Turn {
	if c == nil {
		return h.tutor.Start(ctx, topic)
	}
	next := *c
	if next.Topic == "" {
		next.Topic = topic
	}
	if next.CurrentFocus == "" {
		next.CurrentFocus = next.Topic
	}
	return h.tutor.Advance(ctx, next, message)
}

type chatRequest struct {
	Message string         `json:"message"`
	Topic   string         `json:"topic"`
	Context *tutor.Context `json:"context"`
}

// HandleChat runs one stateless dialogue step; the client round-trips the context.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	var req chatRequest
	if err := h.decode(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "Message and topic are required")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Message == "" || req.Topic == "" {
		Error(w, http.StatusBadRequest, "Message and topic are required")
		return
	}
	if !h.allow(w, userID) {
		return
	}

	turn := h.step(r.Context(), req.Context, req.Topic, req.Message)
	if turn.Reply == nil {
		slog.Error("Tutor returned no reply", "user_id", userID, "topic", req.Topic)
		Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if turn.Degraded() {
		slog.Warn("Chat turn used fallback content", "user_id", userID, "fallbacks", turn.Fallbacks)
	}

	JSON(w, http.StatusOK, turnView(turn))
}

type summaryRequest struct {
	Messages []domain.Message `json:"messages"`
	Topic    string           `json:"topic"`
}

// HandleSummary writes a learning summary of a whole conversation.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	var req summaryRequest
	if err := h.decode(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "Messages and topic are required")
		return
	}
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		Error(w, http.StatusBadRequest, "Messages and topic are required")
		return
	}
	if !h.allow(w, userID) {
		return
	}

	summary, err := h.tutor.Summarize(r.Context(), req.Topic, req.Messages)
	if err != nil {
		slog.Error("Failed to generate summary", "user_id", userID, "topic", req.Topic, "error", err)
		Error(w, http.StatusInternalServerError, "Failed to generate summary")
		return
	}

	JSON(w, http.StatusOK, map[string]string{"summary": summary})
}
