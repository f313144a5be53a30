package tutor

import (
	"context"
	"fmt"

	"github.com/ashureev/socratic-tutor/internal/domain"
)

// Summarize writes a learning summary of a whole transcript. Unlike the
// dialogue steps it has no canned fallback; failures are returned.
func (e *Engine) Summarize(ctx context.Context, topic string, messages []domain.Message) (string, error) {
	text, err := e.generate(ctx, transcriptPrompt(topic, messages))
	if err != nil {
		return "", fmt.Errorf("summarize %q: %w", topic, err)
	}
	return text, nil
}
