//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ashureev/socratic-tutor/internal/domain"
	"github.com/ashureev/socratic-tutor/internal/gateway"
	"github.com/ashureev/socratic-tutor/internal/identity"
	"github.com/ashureev/socratic-tutor/internal/transcript"
	"github.com/ashureev/socratic-tutor/internal/tutor"
	"github.com/go-chi/chi/v5"
)

// testTutor runs the real dialogue engine against an unreachable model, so
// every reply is the deterministic fallback, and fakes summaries.
type testTutor struct {
	*tutor.Engine
	summary    string
	summaryErr error
}

func (t *testTutor) Summarize(_ context.Context, _ string, _ []domain.Message) (string, error) {
	return t.summary, t.summaryErr
}

func newTestTutor() *testTutor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &testTutor{
		Engine:  tutor.NewEngine(gateway.Offline(errors.New("no api key")), logger),
		summary: "1. **Topic Overview**: photosynthesis",
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

// withTestUser plays the part of identity.Middleware using the X-Test-User header.
func withTestUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := r.Header.Get("X-Test-User"); u != "" {
			r = r.WithContext(identity.WithUser(r.Context(), u, u))
		}
		next.ServeHTTP(w, r)
	})
}

type testServer struct {
	handler     *Handler
	router      http.Handler
	tutor       *testTutor
	transcripts *transcript.Store
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()

	tt := newTestTutor()
	store := transcript.NewStore()
	h := NewHandler(tt, store, fakePinger{}, opts)

	r := chi.NewRouter()
	r.Use(withTestUser)
	h.RegisterRoutes(r)
	return &testServer{handler: h, router: r, tutor: tt, transcripts: store}
}

func (s *testServer) do(t *testing.T, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	cases := map[error]int{
		transcript.ErrNotFound:       http.StatusNotFound,
		transcript.ErrTurnInProgress: http.StatusConflict,
		errors.New("boom"):           http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := StatusFor(err); got != want {
			t.Errorf("%v: expected %d, got %d", err, want, got)
		}
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, Options{Model: "models/test"})
	rec := s.do(t, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody[map[string]string](t, rec)
	if body["model"] != "models/test" || body["database"] != "ok" {
		t.Fatalf("unexpected health body %v", body)
	}
}

func TestHealth_DatabaseDown(t *testing.T) {
	t.Parallel()

	h := NewHandler(newTestTutor(), transcript.NewStore(), fakePinger{err: errors.New("closed")}, Options{})
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
