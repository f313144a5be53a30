package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/ashureev/socratic-tutor/internal/markup"
	"github.com/ashureev/socratic-tutor/internal/tutor"
)

// renderTurn prints a reply section by section. Replies without recognizable
// sections are printed as plain text.
func renderTurn(w io.Writer, t tutor.Turn) {
	switch r := t.Reply.(type) {
	case tutor.Opening:
		if len(r.Questions) == 0 {
			section(w, "", r.Raw)
			break
		}
		section(w, "", intro(r.Raw))
		for i, q := range r.Questions {
			section(w, fmt.Sprintf("Q%d", i+1), q)
		}
		section(w, "Hint", r.Hint)
	case tutor.Probe:
		section(w, "Feedback", r.Feedback)
		if r.Question == "" && r.Hint == "" && r.FollowUp == "" {
			section(w, "", r.Block)
			break
		}
		section(w, "Question", r.Question)
		section(w, "Hint", r.Hint)
		section(w, "Follow-up", r.FollowUp)
	case tutor.Wrapup:
		section(w, "Feedback", r.Feedback)
		if r.Summary == "" && r.NextStep == "" {
			section(w, "", r.Block)
			break
		}
		section(w, "Summary", r.Summary)
		section(w, "Next step", r.NextStep)
	}

	if t.Degraded() {
		fmt.Fprintf(w, "(offline reply: %s)\n", joinStages(t.Fallbacks))
	}
	fmt.Fprintln(w)
}

// intro is the text of an opener before its first labeled question.
func intro(raw string) string {
	cut := len(raw)
	for _, label := range []string{markup.LabelQ1, "**" + markup.LabelQ1} {
		if i := strings.Index(raw, label); i >= 0 && i < cut {
			cut = i
		}
	}
	return raw[:cut]
}

func section(w io.Writer, label, text string) {
	text = strings.TrimSpace(markup.Plain(text))
	if text == "" {
		return
	}
	if label == "" {
		fmt.Fprintln(w, text)
		return
	}
	fmt.Fprintf(w, "%s: %s\n", label, text)
}

func joinStages(stages []tutor.Stage) string {
	parts := make([]string, len(stages))
	for i, s := range stages {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
