package api

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/socratic-tutor/internal/tutor"
	"github.com/ledongthuc/pdf"
)

func TestChat_RequiresSignIn(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, Options{})
	rec := s.do(t, http.MethodPost, "/api/chat", "", map[string]string{"message": "hi", "topic": "gravity"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	body := decodeBody[map[string]string](t, rec)
	if body["error"] != "Unauthorized" || body["message"] != "Please sign in to continue." {
		t.Fatalf("unexpected 401 body %v", body)
	}
}

func TestChat_MissingFields(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, Options{})
	for _, body := range []interface{}{
		map[string]string{"message": "", "topic": "gravity"},
		map[string]string{"message": "hi", "topic": "  "},
		"not json",
	} {
		rec := s.do(t, http.MethodPost, "/api/chat", "u1", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %v, got %d", body, rec.Code)
		}
		if got := decodeBody[map[string]string](t, rec)["error"]; got != "Message and topic are required" {
			t.Fatalf("unexpected error %q", got)
		}
	}
}

func TestChat_OpensThenAdvances(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, Options{})

	rec := s.do(t, http.MethodPost, "/api/chat", "u1", map[string]interface{}{
		"message": "photosynthesis", "topic": "photosynthesis", "context": nil,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	first := decodeBody[TurnView](t, rec)
	if first.Reply.Kind != tutor.KindOpening || len(first.Reply.Questions) != 3 {
		t.Fatalf("expected an opening with three questions, got %+v", first.Reply)
	}
	if !first.Degraded || len(first.Parsed.Questions) != 3 {
		t.Fatalf("expected degraded opener with parsed questions, got %+v", first)
	}
	if len(first.Context.PreviousQuestions) != 1 || first.Context.Cycle == nil {
		t.Fatalf("unexpected opener context %+v", first.Context)
	}

	rec = s.do(t, http.MethodPost, "/api/chat", "u1", map[string]interface{}{
		"message": "plants use sunlight", "topic": "photosynthesis", "context": first.Context,
	})
	second := decodeBody[TurnView](t, rec)
	if second.Reply.Kind != tutor.KindQuestion || second.Reply.Question == "" {
		t.Fatalf("expected a probing question, got %+v", second.Reply)
	}
	if !strings.HasPrefix(second.Response, "Feedback: ") {
		t.Fatalf("combined response should start with feedback, got %q", second.Response)
	}
	if len(second.Context.PreviousQuestions) != 2 || len(second.Context.UserResponses) != 1 {
		t.Fatalf("unexpected context after first answer %+v", second.Context)
	}
	if second.Assessment == nil {
		t.Fatal("expected an assessment on answers")
	}
}

func TestChat_ThirdAnswerSummarizes(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, Options{})
	c := tutor.Context{
		Topic: "gravity", UserLevel: tutor.LevelBeginner, CurrentFocus: "gravity",
		PreviousQuestions: []string{"q1", "q2", "q3"}, UserResponses: []string{"a1", "a2"},
	}
	rec := s.do(t, http.MethodPost, "/api/chat", "u1", map[string]interface{}{
		"message": "a3", "topic": "gravity", "context": c,
	})
	view := decodeBody[TurnView](t, rec)
	if view.Reply.Kind != tutor.KindSummary || view.Reply.Summary == "" || view.Reply.NextStep == "" {
		t.Fatalf("expected a summary reply, got %+v", view.Reply)
	}
	if len(view.Context.PreviousQuestions) != 0 {
		t.Fatalf("question log should reset, got %v", view.Context.PreviousQuestions)
	}
}

func TestChat_RateLimited(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(1, time.Minute)
	t.Cleanup(limiter.Stop)
	s := newTestServer(t, Options{Limiter: limiter})

	body := map[string]string{"message": "hi", "topic": "gravity"}
	if rec := s.do(t, http.MethodPost, "/api/chat", "u1", body); rec.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/chat", "u1", body); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/chat", "u2", body); rec.Code != http.StatusOK {
		t.Fatalf("other users are not limited, got %d", rec.Code)
	}
}

func TestChat_BodyTooLarge(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, Options{MaxBodySize: 64})
	rec := s.do(t, http.MethodPost, "/api/chat", "u1", map[string]string{
		"message": strings.Repeat("x", 200), "topic": "gravity",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized body, got %d", rec.Code)
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, Options{})
	rec := s.do(t, http.MethodPost, "/api/summary", "u1", map[string]interface{}{
		"topic":    "photosynthesis",
		"messages": []map[string]string{{"id": "1", "sender": "user", "content": "hi"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decodeBody[map[string]string](t, rec)["summary"]; !strings.Contains(got, "Topic Overview") {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestSummary_ModelFailure(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, Options{})
	s.tutor.summaryErr = errors.New("model down")
	rec := s.do(t, http.MethodPost, "/api/summary", "u1", map[string]interface{}{"topic": "x", "messages": []string{}})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := decodeBody[map[string]string](t, rec)["error"]; got != "Failed to generate summary" {
		t.Fatalf("unexpected error %q", got)
	}
}

func TestSummaryPDF(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, Options{})
	rec := s.do(t, http.MethodPost, "/api/summary/pdf", "u1", map[string]interface{}{
		"topic": "Photosynthesis", "summary": "Plants make **sugar**.",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "learning-summary-photosynthesis.pdf") {
		t.Fatalf("unexpected disposition %q", cd)
	}

	data := rec.Body.Bytes()
	if _, err := pdf.NewReader(bytes.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("response is not a readable PDF: %v", err)
	}
}

func TestTranscriptPDF_RequiresTopic(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, Options{})
	rec := s.do(t, http.MethodPost, "/api/transcript/pdf", "u1", map[string]interface{}{"messages": []string{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
