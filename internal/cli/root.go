// Package cli implements the tutor terminal client.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ashureev/socratic-tutor/internal/config"
	"github.com/ashureev/socratic-tutor/internal/gateway"
	"github.com/ashureev/socratic-tutor/internal/tutor"
	"github.com/spf13/cobra"
)

// Backend is the model surface the commands need; *gateway.Gemini implements it.
type Backend interface {
	gateway.Generator
	gateway.ModelLister
}

// Connect opens a Backend for the given settings.
type Connect func(ctx context.Context, cfg config.ModelConfig) (Backend, error)

func connectGemini(ctx context.Context, cfg config.ModelConfig) (Backend, error) {
	g, err := gateway.NewGemini(ctx, gateway.GeminiConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Name,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

type app struct {
	connect Connect
	model   string
	verbose bool
}

// NewRootCmd builds the command tree backed by Gemini.
func NewRootCmd() *cobra.Command {
	return newRootCmd(connectGemini)
}

func newRootCmd(connect Connect) *cobra.Command {
	a := &app{connect: connect}

	cmd := &cobra.Command{
		Use:           "tutor",
		Short:         "Socratic tutor in the terminal",
		Long:          "Learn a topic through guided questions, feedback and summaries.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&a.model, "model", "", "Model name (default: $GOOGLE_AI_MODEL)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log model fallbacks to stderr")

	cmd.AddCommand(newChatCmd(a))
	cmd.AddCommand(newModelsCmd(a))
	cmd.AddCommand(newExportCmd(a))

	return cmd
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) modelConfig() config.ModelConfig {
	cfg := config.LoadModel()
	if a.model != "" {
		cfg.Name = a.model
	}
	return cfg
}

func (a *app) logger(cmd *cobra.Command) *slog.Logger {
	if !a.verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// engine connects to the model and wraps it in a dialogue engine.
func (a *app) engine(cmd *cobra.Command) (*tutor.Engine, error) {
	backend, err := a.connect(cmd.Context(), a.modelConfig())
	if err != nil {
		return nil, fmt.Errorf("connect to model: %w", err)
	}
	return tutor.NewEngine(backend, a.logger(cmd)), nil
}
