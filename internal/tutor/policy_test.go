package tutor

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ashureev/socratic-tutor/internal/gateway"
)

func contextWithLog(n int) Context {
	log := make([]string, n)
	for i := range log {
		log[i] = "question"
	}
	return Context{
		Topic:             "photosynthesis",
		UserLevel:         LevelBeginner,
		PreviousQuestions: log,
		UserResponses:     []string{},
		CurrentFocus:      "photosynthesis",
	}
}

func TestStart_Opening(t *testing.T) {
	t.Parallel()

	e := NewEngine(newScriptedGenerator(), quietLogger())
	turn := e.Start(context.Background(), "photosynthesis")

	opening, ok := turn.Reply.(Opening)
	if !ok {
		t.Fatalf("expected Opening reply, got %T", turn.Reply)
	}
	if n := len(opening.Questions); n < 2 || n > 3 {
		t.Fatalf("expected 2-3 diagnostic questions, got %d", n)
	}
	if opening.Hint == "" {
		t.Fatal("expected a hint")
	}
	c := turn.Context
	if len(c.PreviousQuestions) != 1 || c.PreviousQuestions[0] != turn.Text() {
		t.Fatalf("expected opener as the only logged question, got %q", c.PreviousQuestions)
	}
	if c.UserLevel != LevelBeginner || c.CurrentFocus != "photosynthesis" || len(c.UserResponses) != 0 {
		t.Fatalf("unexpected initial context %+v", c)
	}
	if c.Cycle == nil || c.Cycle.Phase != PhaseOpening || c.Cycle.Asked != 1 {
		t.Fatalf("unexpected cycle %+v", c.Cycle)
	}
	if turn.Degraded() {
		t.Fatal("model succeeded, turn must not be degraded")
	}
}

func TestStart_FallbackOpening(t *testing.T) {
	t.Parallel()

	gen := newScriptedGenerator()
	gen.failAll(gateway.ErrModelUnavailable)
	e := NewEngine(gen, quietLogger())

	turn := e.Start(context.Background(), "fractions")
	if !turn.Degraded() || turn.Fallbacks[0] != StageOpening {
		t.Fatalf("expected opening fallback, got %v", turn.Fallbacks)
	}
	opening := turn.Reply.(Opening)
	if len(opening.Questions) != 3 || !strings.Contains(opening.Raw, "**fractions**") {
		t.Fatalf("unexpected fallback opening %+v", opening)
	}
}

func TestAdvance_AsksQuestionBelowThreshold(t *testing.T) {
	t.Parallel()

	for n := 0; n < MaxProbes; n++ {
		gen := newScriptedGenerator()
		e := NewEngine(gen, quietLogger())

		turn := e.Advance(context.Background(), contextWithLog(n), "plants use sunlight")

		probe, ok := turn.Reply.(Probe)
		if !ok {
			t.Fatalf("n=%d: expected Probe reply, got %T", n, turn.Reply)
		}
		if got := len(turn.Context.PreviousQuestions); got != n+1 {
			t.Fatalf("n=%d: expected log length %d, got %d", n, n+1, got)
		}
		if turn.Context.Cycle.Asked != n+1 || turn.Context.Cycle.Phase != PhaseProbing {
			t.Fatalf("n=%d: unexpected cycle %+v", n, turn.Context.Cycle)
		}
		kinds := gen.kinds()
		if kinds[len(kinds)-1] != questionFormat {
			t.Fatalf("n=%d: expected a SocraticQuestion request, got %v", n, kinds)
		}
		if probe.Question != "What absorbs the light?" || probe.Hint != "It is green." || probe.FollowUp != "Why green?" {
			t.Fatalf("n=%d: unexpected probe %+v", n, probe)
		}
	}
}

func TestAdvance_SummarizesAtThreshold(t *testing.T) {
	t.Parallel()

	for _, n := range []int{MaxProbes, MaxProbes + 2} {
		gen := newScriptedGenerator()
		e := NewEngine(gen, quietLogger())

		in := contextWithLog(n)
		in.UserResponses = []string{"a", "b"}
		turn := e.Advance(context.Background(), in, "plants use sunlight")

		wrap, ok := turn.Reply.(Wrapup)
		if !ok {
			t.Fatalf("n=%d: expected Wrapup reply, got %T", n, turn.Reply)
		}
		if len(turn.Context.PreviousQuestions) != 0 {
			t.Fatalf("n=%d: expected log reset, got %d entries", n, len(turn.Context.PreviousQuestions))
		}
		if got := turn.Context.UserResponses; len(got) != 3 || got[2] != "plants use sunlight" {
			t.Fatalf("n=%d: answer must still be appended, got %q", n, got)
		}
		if turn.Context.Cycle.Phase != PhaseSummarized || turn.Context.Cycle.Asked != 0 {
			t.Fatalf("n=%d: unexpected cycle %+v", n, turn.Context.Cycle)
		}
		kinds := gen.kinds()
		if kinds[len(kinds)-1] != summaryFormat {
			t.Fatalf("n=%d: expected a SummaryAnswer request, got %v", n, kinds)
		}
		if wrap.NextStep != "Explore respiration." {
			t.Fatalf("n=%d: unexpected wrap-up %+v", n, wrap)
		}
	}
}

func TestAdvance_CallsAssessmentThenFeedbackThenBlock(t *testing.T) {
	t.Parallel()

	gen := newScriptedGenerator()
	e := NewEngine(gen, quietLogger())
	e.Advance(context.Background(), contextWithLog(1), "answer")

	want := []string{gradingFormat, feedbackFormat, questionFormat}
	got := gen.kinds()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("expected call order %v, got %v", want, got)
	}
}

func TestAdvance_FocusAndLevel(t *testing.T) {
	t.Parallel()

	gen := newScriptedGenerator()
	e := NewEngine(gen, quietLogger())
	turn := e.Advance(context.Background(), contextWithLog(1), "answer")

	if turn.Context.CurrentFocus != "role of chlorophyll" {
		t.Fatalf("expected focus from first misunderstanding, got %q", turn.Context.CurrentFocus)
	}
	if turn.Context.UserLevel != LevelIntermediate {
		t.Fatalf("expected assessed level, got %q", turn.Context.UserLevel)
	}

	gen.replies[gradingFormat] = `{"level":"advanced","keyMisunderstandings":[],"strengths":["all"],"accuracyPercentage":95,"isCorrect":true}`
	next := e.Advance(context.Background(), turn.Context, "better answer")
	if next.Context.CurrentFocus != "role of chlorophyll" {
		t.Fatalf("focus must stay when no misunderstanding is reported, got %q", next.Context.CurrentFocus)
	}
}

func TestAdvance_FeedbackPrefixesReply(t *testing.T) {
	t.Parallel()

	e := NewEngine(newScriptedGenerator(), quietLogger())
	turn := e.Advance(context.Background(), contextWithLog(1), "answer")

	want := "Feedback: **Correctness:** Partially Correct - You're about 60% accurate!\n\nQuestion: What absorbs the light?"
	if !strings.HasPrefix(turn.Text(), want) {
		t.Fatalf("unexpected combined text %q", turn.Text())
	}
	if turn.Context.PreviousQuestions[1] != turn.Text() {
		t.Fatal("logged question must be the combined response")
	}
}

func TestAdvance_AllModelCallsFail(t *testing.T) {
	t.Parallel()

	gen := newScriptedGenerator()
	gen.failAll(gateway.ErrModelUnavailable)
	e := NewEngine(gen, quietLogger())

	turn := e.Advance(context.Background(), contextWithLog(1), "answer")
	want := []Stage{StageAssessment, StageFeedback, StageQuestion}
	if len(turn.Fallbacks) != len(want) {
		t.Fatalf("expected fallbacks %v, got %v", want, turn.Fallbacks)
	}
	for i := range want {
		if turn.Fallbacks[i] != want[i] {
			t.Fatalf("expected fallbacks %v, got %v", want, turn.Fallbacks)
		}
	}
	probe := turn.Reply.(Probe)
	if probe.Feedback != "**Correctness:** Incorrect - You're about 0% accurate! Let me help you understand this better." {
		t.Fatalf("unexpected fallback feedback %q", probe.Feedback)
	}
	if probe.Question == "" || probe.Hint == "" || probe.FollowUp == "" {
		t.Fatalf("fallback question block should parse, got %+v", probe)
	}

	summary := e.Advance(context.Background(), contextWithLog(MaxProbes), "answer")
	wrap := summary.Reply.(Wrapup)
	if !strings.Contains(wrap.Summary, "Great work exploring photosynthesis!") {
		t.Fatalf("unexpected fallback summary %q", wrap.Summary)
	}
	if wrap.NextStep != "What aspect of photosynthesis would you like to explore further?" {
		t.Fatalf("unexpected fallback next step %q", wrap.NextStep)
	}
}

func TestAdvance_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	e := NewEngine(newScriptedGenerator(), quietLogger())
	in := contextWithLog(1)
	in.UserResponses = make([]string, 0, 8)
	e.Advance(context.Background(), in, "answer")

	if len(in.PreviousQuestions) != 1 || len(in.UserResponses) != 0 {
		t.Fatalf("input context was mutated: %+v", in)
	}
	if in.UserResponses[:1][0] != "" {
		t.Fatal("shared backing array was written")
	}
}

func TestCycleState_LegacyContext(t *testing.T) {
	t.Parallel()

	cases := []struct {
		n     int
		phase Phase
	}{
		{0, PhaseSummarized},
		{1, PhaseOpening},
		{2, PhaseProbing},
	}
	for _, tc := range cases {
		got := contextWithLog(tc.n).CycleState()
		if got.Phase != tc.phase || got.Asked != tc.n {
			t.Errorf("n=%d: unexpected cycle %+v", tc.n, got)
		}
	}
}

func TestContext_JSONContract(t *testing.T) {
	t.Parallel()

	var c Context
	body := `{"topic":"t","userLevel":"advanced","previousQuestions":["q"],"userResponses":[],"currentFocus":"f"}`
	if err := json.Unmarshal([]byte(body), &c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Cycle != nil || c.CycleState().Asked != 1 {
		t.Fatalf("legacy context should derive the cycle, got %+v", c.CycleState())
	}

	e := NewEngine(newScriptedGenerator(), quietLogger())
	out, err := json.Marshal(e.Start(context.Background(), "t").Context)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, key := range []string{`"userLevel":"beginner"`, `"userResponses":[]`, `"cycle":{"phase":"opening","asked":1}`} {
		if !strings.Contains(string(out), key) {
			t.Errorf("expected %s in %s", key, out)
		}
	}
}

// Start a topic, then answer three times: the first two answers get
// questions, the third closes the cycle with a summary.
func TestDialogue_EndToEnd(t *testing.T) {
	t.Parallel()

	gen := newScriptedGenerator()
	e := NewEngine(gen, quietLogger())
	ctx := context.Background()

	turn := e.Start(ctx, "photosynthesis")
	if _, ok := turn.Reply.(Opening); !ok {
		t.Fatalf("expected opening, got %T", turn.Reply)
	}

	turn = e.Advance(ctx, turn.Context, "plants use sunlight")
	probe, ok := turn.Reply.(Probe)
	if !ok || probe.Question == "" || probe.Hint == "" || probe.FollowUp == "" || probe.Feedback == "" {
		t.Fatalf("expected feedback plus question block, got %+v", turn.Reply)
	}
	if got := len(turn.Context.PreviousQuestions); got != 2 {
		t.Fatalf("expected opener plus one question logged, got %d", got)
	}

	turn = e.Advance(ctx, turn.Context, "chlorophyll absorbs light")
	if _, ok := turn.Reply.(Probe); !ok {
		t.Fatalf("second answer should get a question, got %T", turn.Reply)
	}

	turn = e.Advance(ctx, turn.Context, "it makes glucose")
	wrap, ok := turn.Reply.(Wrapup)
	if !ok {
		t.Fatalf("third answer should get a summary, got %T", turn.Reply)
	}
	if !strings.Contains(turn.Text(), "Summary:") || !strings.Contains(turn.Text(), "NextStep:") {
		t.Fatalf("summary text missing labels: %q", turn.Text())
	}
	if wrap.Summary == "" {
		t.Fatal("expected parsed summary")
	}
	if len(turn.Context.PreviousQuestions) != 0 {
		t.Fatal("expected the question log to reset")
	}
	if turn.Context.CurrentFocus != "role of chlorophyll" {
		t.Fatalf("focus should persist across the summary, got %q", turn.Context.CurrentFocus)
	}
	if len(turn.Context.UserResponses) != 3 {
		t.Fatalf("expected three recorded answers, got %d", len(turn.Context.UserResponses))
	}

	// The next answer starts a new probing cycle on the same topic.
	turn = e.Advance(ctx, turn.Context, "what next?")
	if _, ok := turn.Reply.(Probe); !ok || turn.Context.Cycle.Asked != 1 {
		t.Fatalf("expected a new cycle, got %T %+v", turn.Reply, turn.Context.Cycle)
	}
}

func TestCycleState_LogWinsOverCarriedCycle(t *testing.T) {
	t.Parallel()

	c := contextWithLog(3)
	c.Cycle = &Cycle{Phase: PhaseOpening, Asked: 1}
	if got := c.CycleState(); got.Asked != 3 || got.Phase != PhaseProbing {
		t.Fatalf("unexpected cycle %+v", got)
	}

	c = contextWithLog(1)
	c.Cycle = &Cycle{Phase: PhaseProbing, Asked: 1}
	if got := c.CycleState(); got.Phase != PhaseProbing {
		t.Fatalf("a consistent phase should be kept, got %+v", got)
	}
}

func TestAdvance_StaleCycleCannotSkipSummary(t *testing.T) {
	t.Parallel()

	e := NewEngine(newScriptedGenerator(), quietLogger())
	ctx := context.Background()

	full := contextWithLog(3)
	full.Cycle = &Cycle{Phase: PhaseProbing, Asked: 1}
	turn := e.Advance(ctx, full, "an answer")
	if _, ok := turn.Reply.(Wrapup); !ok {
		t.Fatalf("a log of three questions must summarize, got %T", turn.Reply)
	}
	if len(turn.Context.PreviousQuestions) != 0 || turn.Context.Cycle.Asked != 0 {
		t.Fatalf("expected a reset log, got %+v", turn.Context)
	}

	empty := contextWithLog(0)
	empty.Cycle = &Cycle{Phase: PhaseProbing, Asked: 3}
	turn = e.Advance(ctx, empty, "an answer")
	if _, ok := turn.Reply.(Probe); !ok {
		t.Fatalf("an empty log must not summarize, got %T", turn.Reply)
	}
	if len(turn.Context.PreviousQuestions) != 1 || turn.Context.Cycle.Asked != 1 {
		t.Fatalf("cycle must track the log, got %+v", turn.Context)
	}
}
