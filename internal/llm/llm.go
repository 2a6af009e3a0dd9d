// Package llm declares the optional AI capabilities the pipeline consumes.
// Backends are resolved once at startup; a missing backend is represented by
// Unavailable rather than nil checks scattered through callers.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable signals that a capability is not configured in this process.
var ErrUnavailable = errors.New("ai capability unavailable")

// Generator completes a prompt into free text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Name identifies the backend in logs and request budgets.
	Name() string
	// ContextBudget is the number of content characters a prompt may safely carry.
	ContextBudget() int
}

// Embedder maps text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// Unavailable is the null object for both capabilities.
type Unavailable struct{}

func (Unavailable) Generate(context.Context, string) (string, error) { return "", ErrUnavailable }

func (Unavailable) Embed(context.Context, string) ([]float32, error) { return nil, ErrUnavailable }

func (Unavailable) Name() string { return "none" }

func (Unavailable) ContextBudget() int { return 12000 }

// Available reports whether g is backed by a real provider.
func Available(g any) bool {
	if g == nil {
		return false
	}
	_, none := g.(Unavailable)
	return !none
}

// GeneratorFunc adapts a function to Generator; handy for tests and wrappers.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func (GeneratorFunc) Name() string { return "func" }

func (GeneratorFunc) ContextBudget() int { return 12000 }

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

func (EmbedderFunc) Name() string { return "func" }
