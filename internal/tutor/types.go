// Package tutor implements the Socratic dialogue: answer assessment, the
// opening/probing/summary cycle, and transcript summaries.
package tutor

import (
	"strings"
)

// MaxProbes is the number of questions asked in a cycle before the tutor
// summarizes. The opener counts as the first question.
const MaxProbes = 3

// Level is the learner's assessed understanding.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// ParseLevel normalizes s to a known level, defaulting to beginner.
func ParseLevel(s string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelIntermediate:
		return LevelIntermediate
	case LevelAdvanced:
		return LevelAdvanced
	default:
		return LevelBeginner
	}
}

// Phase is the position of a conversation within its cycle.
type Phase string

const (
	PhaseOpening    Phase = "opening"
	PhaseProbing    Phase = "probing"
	PhaseSummarized Phase = "summarized"
)

// Cycle is the explicit cycle state carried with a Context.
type Cycle struct {
	Phase Phase `json:"phase"`
	Asked int   `json:"asked"`
}

// Context is the per-topic dialogue state round-tripped through clients.
// Field names follow the browser contract.
type Context struct {
	Topic             string   `json:"topic"`
	UserLevel         Level    `json:"userLevel"`
	PreviousQuestions []string `json:"previousQuestions"`
	UserResponses     []string `json:"userResponses"`
	CurrentFocus      string   `json:"currentFocus"`
	Cycle             *Cycle   `json:"cycle,omitempty"`
}

// CycleState returns the cycle. The question log is the turn counter: Asked
// is always len(PreviousQuestions), and a carried Phase is kept only when it
// agrees with the log.
func (c Context) CycleState() Cycle {
	n := len(c.PreviousQuestions)
	if c.Cycle != nil && c.Cycle.Phase.consistentWith(n) {
		return Cycle{Phase: c.Cycle.Phase, Asked: n}
	}
	switch {
	case n == 0:
		return Cycle{Phase: PhaseSummarized}
	case n == 1:
		return Cycle{Phase: PhaseOpening, Asked: 1}
	default:
		return Cycle{Phase: PhaseProbing, Asked: n}
	}
}

func (p Phase) consistentWith(asked int) bool {
	switch p {
	case PhaseSummarized:
		return asked == 0
	case PhaseOpening:
		return asked == 1
	case PhaseProbing:
		return asked >= 1
	}
	return false
}

// SummaryDue reports whether the next answer closes the cycle.
func (c Context) SummaryDue() bool {
	return c.CycleState().Asked >= MaxProbes
}

// Clone returns a deep copy of c with non-nil slices.
func (c Context) Clone() Context {
	out := c
	out.UserLevel = ParseLevel(string(c.UserLevel))
	out.PreviousQuestions = append([]string{}, c.PreviousQuestions...)
	out.UserResponses = append([]string{}, c.UserResponses...)
	if c.Cycle != nil {
		cy := *c.Cycle
		out.Cycle = &cy
	}
	return out
}

// Assessment is the grading of one student answer.
type Assessment struct {
	Level                Level    `json:"level"`
	KeyMisunderstandings []string `json:"keyMisunderstandings"`
	Strengths            []string `json:"strengths"`
	AccuracyPercentage   int      `json:"accuracyPercentage"`
	IsCorrect            bool     `json:"isCorrect"`
}

// DefaultAssessment is used whenever grading fails.
func DefaultAssessment() Assessment {
	return Assessment{
		Level:                LevelBeginner,
		KeyMisunderstandings: []string{},
		Strengths:            []string{},
	}
}

// Correctness is the verdict shown to the learner.
func (a Assessment) Correctness() string {
	switch {
	case a.IsCorrect:
		return "Correct"
	case a.AccuracyPercentage > 50:
		return "Partially Correct"
	default:
		return "Incorrect"
	}
}

// Focus returns the concept the next question should target.
func (a Assessment) Focus(current string) string {
	if len(a.KeyMisunderstandings) > 0 {
		return a.KeyMisunderstandings[0]
	}
	return current
}

// Stage names a model call within a turn.
type Stage string

const (
	StageOpening    Stage = "opening"
	StageAssessment Stage = "assessment"
	StageFeedback   Stage = "feedback"
	StageQuestion   Stage = "question"
	StageSummary    Stage = "summary"
)

// Turn is the outcome of one dialogue step.
type Turn struct {
	Reply      Reply
	Context    Context
	Assessment *Assessment
	// Fallbacks lists the stages answered with canned text because the model
	// call failed.
	Fallbacks []Stage
}

// Text is the combined reply text sent to clients.
func (t Turn) Text() string {
	return t.Reply.Text()
}

// Degraded reports whether any stage fell back to canned text.
func (t Turn) Degraded() bool {
	return len(t.Fallbacks) > 0
}
