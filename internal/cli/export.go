package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ashureev/socratic-tutor/internal/export"
	"github.com/ashureev/socratic-tutor/internal/transcript"
	"github.com/spf13/cobra"
)

type exportFlags struct {
	in   string
	out  string
	kind string
}

func newExportCmd(a *app) *cobra.Command {
	var f exportFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render a saved transcript as a PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, a, f)
		},
	}

	cmd.Flags().StringVarP(&f.in, "in", "i", "", "Transcript JSON written by /save")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Output PDF (default: derived from the topic)")
	cmd.Flags().StringVarP(&f.kind, "kind", "k", "transcript", "summary or transcript")
	return cmd
}

func readTranscript(path string) (transcript.Session, error) {
	var sess transcript.Session
	data, err := os.ReadFile(path)
	if err != nil {
		return sess, fmt.Errorf("read transcript: %w", err)
	}
	if err := json.Unmarshal(data, &sess); err != nil {
		return sess, fmt.Errorf("parse transcript: %w", err)
	}
	if strings.TrimSpace(sess.Topic) == "" {
		return sess, errors.New("transcript has no topic")
	}
	return sess, nil
}

func runExport(cmd *cobra.Command, a *app, f exportFlags) error {
	if f.in == "" {
		return errors.New("--in is required")
	}
	sess, err := readTranscript(f.in)
	if err != nil {
		return err
	}

	var render func(io.Writer) error
	prefix := "chat-history"
	switch f.kind {
	case "transcript":
		render = func(w io.Writer) error { return export.RenderTranscript(w, sess.Topic, sess.Messages) }
	case "summary":
		engine, err := a.engine(cmd)
		if err != nil {
			return err
		}
		summary, err := engine.Summarize(cmd.Context(), sess.Topic, sess.Messages)
		if err != nil {
			return err
		}
		prefix = "learning-summary"
		render = func(w io.Writer) error { return export.RenderSummary(w, sess.Topic, summary) }
	default:
		return fmt.Errorf("unknown kind %q (want summary or transcript)", f.kind)
	}

	out := f.out
	if out == "" {
		out = export.Filename(prefix, sess.Topic)
	}
	if err := writeFile(out, render); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", out)
	return nil
}
