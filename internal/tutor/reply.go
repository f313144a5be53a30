package tutor

import "github.com/ashureev/socratic-tutor/internal/markup"

// Kind identifies a Reply variant.
type Kind string

const (
	KindOpening  Kind = "opening"
	KindQuestion Kind = "question"
	KindSummary  Kind = "summary"
)

// Reply is one of Opening, Probe or Wrapup.
type Reply interface {
	Kind() Kind
	// Text is the raw labeled text, as stored in transcripts.
	Text() string
	isReply()
}

// Opening starts a topic with diagnostic questions.
type Opening struct {
	Raw       string
	Questions []string
	Hint      string
}

// Probe gives feedback on an answer and asks the next question.
type Probe struct {
	Feedback string
	Block    string
	Question string
	Hint     string
	FollowUp string
}

// Wrapup gives feedback and closes the cycle with a summary.
type Wrapup struct {
	Feedback string
	Block    string
	Summary  string
	NextStep string
}

func (Opening) Kind() Kind { return KindOpening }
func (Probe) Kind() Kind   { return KindQuestion }
func (Wrapup) Kind() Kind  { return KindSummary }

func (o Opening) Text() string { return o.Raw }
func (p Probe) Text() string   { return withFeedback(p.Feedback, p.Block) }
func (w Wrapup) Text() string  { return withFeedback(w.Feedback, w.Block) }

func (Opening) isReply() {}
func (Probe) isReply()   {}
func (Wrapup) isReply()  {}

func withFeedback(feedback, block string) string {
	return markup.LabelFeedback + " " + feedback + "\n\n" + block
}

func newOpening(raw string) Opening {
	p := markup.Parse(raw)
	return Opening{Raw: raw, Questions: p.Questions, Hint: p.Hint}
}

func newProbe(feedback, block string) Probe {
	p := markup.Parse(block)
	return Probe{Feedback: feedback, Block: block, Question: p.Question, Hint: p.Hint, FollowUp: p.FollowUp}
}

func newWrapup(feedback, block string) Wrapup {
	p := markup.Parse(block)
	return Wrapup{Feedback: feedback, Block: block, Summary: p.Summary, NextStep: p.NextStep}
}
