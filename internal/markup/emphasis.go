package markup

import (
	"regexp"
	"strings"
)

var boldPattern = regexp.MustCompile(`\*\*(.+?)\*\*`)

// Span is a run of text with uniform emphasis.
type Span struct {
	Text string `json:"text"`
	Bold bool   `json:"bold,omitempty"`
}

// Emphasize converts **bold** pairs into bold spans. Text without a pair is
// returned as a single plain span.
func Emphasize(text string) []Span {
	matches := boldPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return []Span{{Text: text}}
	}

	spans := make([]Span, 0, 2*len(matches)+1)
	last := 0
	for _, m := range matches {
		if m[0] > last {
			spans = append(spans, Span{Text: text[last:m[0]]})
		}
		spans = append(spans, Span{Text: text[m[2]:m[3]], Bold: true})
		last = m[1]
	}
	if last < len(text) {
		spans = append(spans, Span{Text: text[last:]})
	}
	return spans
}

// Plain returns text with bold markers removed.
func Plain(text string) string {
	var b strings.Builder
	for _, s := range Emphasize(text) {
		b.WriteString(s.Text)
	}
	return b.String()
}
