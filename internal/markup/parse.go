// Package markup decodes the labeled-field text that tutor replies are
// written in ("Question: …", "Hint: …") into structured sections.
package markup

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Labels recognized by Parse.
const (
	LabelFeedback = "Feedback:"
	LabelQ1       = "Q1:"
	LabelQ2       = "Q2:"
	LabelQ3       = "Q3:"
	LabelQuestion = "Question:"
	LabelHint     = "Hint:"
	LabelFollowUp = "FollowUp:"
	LabelSummary  = "Summary:"
	LabelNextStep = "NextStep:"
)

var labels = []string{
	LabelFeedback,
	LabelQ1, LabelQ2, LabelQ3,
	LabelQuestion,
	LabelHint,
	LabelFollowUp,
	LabelSummary,
	LabelNextStep,
}

// Response holds the sections found in one reply. Absent sections are empty.
type Response struct {
	Feedback  string   `json:"feedback,omitempty"`
	Questions []string `json:"questions,omitempty"`
	Hint      string   `json:"hint,omitempty"`
	Question  string   `json:"question,omitempty"`
	FollowUp  string   `json:"followUp,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	NextStep  string   `json:"nextStep,omitempty"`
}

// Empty reports whether no labeled section was found. Callers then display
// the raw text as a single unstructured message.
func (r Response) Empty() bool {
	return r.Feedback == "" && len(r.Questions) == 0 && r.Hint == "" &&
		r.Question == "" && r.FollowUp == "" && r.Summary == "" && r.NextStep == ""
}

type occurrence struct {
	label      string
	start, end int // label bounds in the source text
}

// Parse splits text into labeled sections. A section runs from its label to
// the next recognized label or the end of the text. Only the first non-empty
// occurrence of each label is used. Parse never fails.
func Parse(text string) Response {
	occ := scan(text)
	sections := make(map[string]string, len(labels))
	for i, o := range occ {
		if sections[o.label] != "" {
			continue
		}
		end := len(text)
		if i+1 < len(occ) {
			end = occ[i+1].start
		}
		if body := clean(text[o.end:end]); body != "" {
			sections[o.label] = body
		}
	}

	var r Response
	r.Feedback = sections[LabelFeedback]
	for _, q := range []string{LabelQ1, LabelQ2, LabelQ3} {
		if s := sections[q]; s != "" {
			r.Questions = append(r.Questions, s)
		}
	}
	r.Question = sections[LabelQuestion]
	r.Hint = sections[LabelHint]
	r.FollowUp = sections[LabelFollowUp]
	r.Summary = sections[LabelSummary]
	r.NextStep = sections[LabelNextStep]
	return r
}

// scan finds every label that starts at a word boundary, in text order.
func scan(text string) []occurrence {
	var occ []occurrence
	for i := 0; i < len(text); i++ {
		if !atBoundary(text, i) {
			continue
		}
		for _, l := range labels {
			if strings.HasPrefix(text[i:], l) {
				occ = append(occ, occurrence{label: l, start: i, end: i + len(l)})
				i += len(l) - 1
				break
			}
		}
	}
	return occ
}

func atBoundary(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// clean trims whitespace and the bold markers left over from labels such as
// "**Q1:**", keeping bold pairs that belong to the section text.
func clean(s string) string {
	for {
		next := strings.TrimSpace(s)
		if strings.HasPrefix(next, "**") && dangling(next, true) {
			next = next[2:]
		}
		if strings.HasSuffix(next, "**") && dangling(next, false) {
			next = next[:len(next)-2]
		}
		if next == s {
			return next
		}
		s = next
	}
}

// dangling reports whether the "**" at the start (or end) of s is not part
// of a bold pair.
func dangling(s string, leading bool) bool {
	if strings.Count(s, "**")%2 == 1 {
		return true
	}
	if leading {
		r, _ := utf8.DecodeRuneInString(s[2:])
		return r == utf8.RuneError || unicode.IsSpace(r)
	}
	r, _ := utf8.DecodeLastRuneInString(s[:len(s)-2])
	return r == utf8.RuneError || unicode.IsSpace(r)
}
