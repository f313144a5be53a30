package api

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ashureev/socratic-tutor/internal/domain"
	"github.com/ashureev/socratic-tutor/internal/export"
	"github.com/ashureev/socratic-tutor/internal/identity"
)

const (
	kindSummary    = "summary"
	kindTranscript = "transcript"
)

// writePDF renders into memory first so a failed render still gets a JSON error.
func writePDF(w http.ResponseWriter, filename string, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		slog.Error("Failed to render PDF", "filename", filename, "error", err)
		Error(w, http.StatusInternalServerError, "Failed to generate PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Debug("Failed to write PDF response", "error", err)
	}
}

type pdfRequest struct {
	Topic    string           `json:"topic"`
	Summary  string           `json:"summary"`
	Messages []domain.Message `json:"messages"`
}

// SummaryPDF downloads a learning summary. A summary in the body is used as
// is; otherwise one is generated from the messages.
func (h *Handler) SummaryPDF(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	var req pdfRequest
	if err := h.decode(w, r, &req); err != nil || strings.TrimSpace(req.Topic) == "" {
		Error(w, http.StatusBadRequest, "Topic is required")
		return
	}
	req.Topic = strings.TrimSpace(req.Topic)

	summary := strings.TrimSpace(req.Summary)
	if summary == "" {
		if !h.allow(w, userID) {
			return
		}
		var err error
		summary, err = h.tutor.Summarize(r.Context(), req.Topic, req.Messages)
		if err != nil {
			slog.Error("Failed to generate summary", "user_id", userID, "topic", req.Topic, "error", err)
			Error(w, http.StatusInternalServerError, "Failed to generate summary")
			return
		}
	}

	writePDF(w, export.Filename("learning-summary", req.Topic), func(out io.Writer) error {
		return export.RenderSummary(out, req.Topic, summary)
	})
}

// TranscriptPDF downloads the full chat history.
func (h *Handler) TranscriptPDF(w http.ResponseWriter, r *http.Request) {
	var req pdfRequest
	if err := h.decode(w, r, &req); err != nil || strings.TrimSpace(req.Topic) == "" {
		Error(w, http.StatusBadRequest, "Topic is required")
		return
	}
	req.Topic = strings.TrimSpace(req.Topic)

	writePDF(w, export.Filename("chat-history", req.Topic), func(out io.Writer) error {
		return export.RenderTranscript(out, req.Topic, req.Messages)
	})
}
