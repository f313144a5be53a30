// Package export renders learning summaries and chat transcripts as PDF.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ashureev/socratic-tutor/internal/domain"
	"github.com/ashureev/socratic-tutor/internal/markup"
	"github.com/go-pdf/fpdf"
)

const (
	fontFamily = "Helvetica"
	lineHeight = 6.0
)

type document struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newDocument(title string) *document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("socratic-tutor", true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	d := &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	d.pdf.SetFont(fontFamily, "B", 16)
	d.pdf.MultiCell(0, 9, d.tr(title), "", "L", false)
	d.pdf.SetFont(fontFamily, "I", 9)
	d.pdf.MultiCell(0, 5, "Generated on "+time.Now().Format("January 2, 2006"), "", "L", false)
	d.pdf.Ln(4)
	return d
}

// paragraph writes text line by line, rendering **bold** spans in bold.
func (d *document) paragraph(text string) {
	for _, line := range strings.Split(text, "\n") {
		for _, span := range markup.Emphasize(line) {
			style := ""
			if span.Bold {
				style = "B"
			}
			d.pdf.SetFont(fontFamily, style, 11)
			d.pdf.Write(lineHeight, d.tr(span.Text))
		}
		d.pdf.Ln(lineHeight)
	}
}

func (d *document) label(text string) {
	d.pdf.SetFont(fontFamily, "B", 11)
	d.pdf.Write(lineHeight, d.tr(text))
	d.pdf.Ln(lineHeight)
}

func (d *document) output(w io.Writer) error {
	if err := d.pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// SummaryTitle is the document title for a learning summary.
func SummaryTitle(topic string) string {
	return "Learning Summary: " + topic
}

// TranscriptTitle is the document title for a chat history.
func TranscriptTitle(topic string) string {
	return "Chat History: " + topic
}

// RenderSummary writes a learning summary document.
func RenderSummary(w io.Writer, topic, summary string) error {
	d := newDocument(SummaryTitle(topic))
	d.paragraph(summary)
	return d.output(w)
}

// RenderTranscript writes every message of a chat, labelled by speaker.
func RenderTranscript(w io.Writer, topic string, messages []domain.Message) error {
	d := newDocument(TranscriptTitle(topic))
	for _, m := range messages {
		d.label(m.Sender.Label() + ":")
		d.paragraph(m.Content)
		d.pdf.Ln(3)
	}
	return d.output(w)
}

// Filename builds a download name such as "learning-summary-photosynthesis.pdf".
func Filename(kind, topic string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(topic) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = "session"
	}
	return kind + "-" + slug + ".pdf"
}
