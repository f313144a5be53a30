package tutor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/socratic-tutor/internal/gateway"
)

// Engine runs the dialogue against a text generator.
type Engine struct {
	gen    gateway.Generator
	logger *slog.Logger
}

// NewEngine creates an Engine. A nil logger uses slog.Default().
func NewEngine(gen gateway.Generator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{gen: gen, logger: logger}
}

// generate calls the model and returns sanitized, non-empty text.
func (e *Engine) generate(ctx context.Context, prompt string) (string, error) {
	raw, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	text := gateway.Sanitize(raw)
	if text == "" {
		return "", gateway.ErrEmptyResponse
	}
	return text, nil
}

// generateOr runs generate and substitutes fallback on failure, recording the
// stage in fallbacks.
func (e *Engine) generateOr(ctx context.Context, stage Stage, prompt string, fallback func() string, fallbacks *[]Stage) string {
	text, err := e.generate(ctx, prompt)
	if err != nil {
		e.logger.Warn("Model call failed, using fallback", "stage", stage, "error", err)
		*fallbacks = append(*fallbacks, stage)
		return fallback()
	}
	return text
}

func (e *Engine) feedback(ctx context.Context, answer, topic string, a Assessment) (string, error) {
	text, err := e.generate(ctx, feedbackPrompt(answer, topic, a))
	if err != nil {
		return "", fmt.Errorf("generate feedback: %w", err)
	}
	if i := strings.Index(text, "Feedback:"); i >= 0 {
		if body := strings.TrimSpace(text[i+len("Feedback:"):]); body != "" {
			return body, nil
		}
	}
	return text, nil
}
