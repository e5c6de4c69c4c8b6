package provider

import (
	"context"
	"fmt"
	"strings"
)

// Generator produces a text completion for a message list. detailed asks
// for a longer, more exploratory answer; summarization uses the short,
// near-deterministic mode.
type Generator interface {
	Generate(ctx context.Context, msgs []LLMMessage, detailed bool) (string, error)
}

// Completion parameters used by ChainGenerator for each mode.
const (
	ConciseMaxTokens    = 1000
	ConciseTemperature  = 0.1
	DetailedMaxTokens   = 4000
	DetailedTemperature = 0.7
)

// ChainGenerator adapts a Chain to the Generator interface.
type ChainGenerator struct {
	Chain *Chain
	Role  Role
}

// Generate implements Generator.
func (g *ChainGenerator) Generate(ctx context.Context, msgs []LLMMessage, detailed bool) (string, error) {
	role := g.Role
	if role == "" {
		role = RolePrimary
	}

	req := CompletionRequest{Messages: msgs}
	if detailed {
		req.MaxTokens = DetailedMaxTokens
		req.Temperature = ptr(DetailedTemperature)
	} else {
		req.MaxTokens = ConciseMaxTokens
		req.Temperature = ptr(ConciseTemperature)
	}

	resp, err := g.Chain.Complete(ctx, role, req)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func ptr[T any](v T) *T { return &v }

var _ Generator = (*ChainGenerator)(nil)
