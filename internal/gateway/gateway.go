// Package gateway wraps the external generative-language service and cleans
// up the raw text it returns.
package gateway

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"
)

var (
	// ErrModelUnavailable is returned when the model service cannot be reached
	// or rejects the call (transport, quota or credential failures).
	ErrModelUnavailable = fmt.Errorf("model service unavailable: %w", errdefs.ErrUnavailable)

	// ErrEmptyResponse is returned when the model answers without any text.
	ErrEmptyResponse = fmt.Errorf("model returned no text: %w", errdefs.ErrDataLoss)
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ModelLister enumerates the models available to the configured credentials.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Offline returns a Generator that fails every call with ErrModelUnavailable.
// It keeps the service answering with fallback content when no client could
// be constructed at startup.
func Offline(cause error) Generator {
	return GeneratorFunc(func(context.Context, string) (string, error) {
		return "", fmt.Errorf("%w: %w", ErrModelUnavailable, cause)
	})
}
