package ctxengine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/chatmem/internal/provider"
)

// ErrSummarizationFailed indicates the summarizer produced no usable text.
var ErrSummarizationFailed = errors.New("ctxengine: summarization failed")

// Summarizer folds recent messages into a running summary.
type Summarizer interface {
	Summarize(ctx context.Context, currentSummary string, recent []provider.LLMMessage) (string, error)
}

const summaryInstruction = `You maintain a running summary of a conversation between a user and an assistant.
Update the existing summary with the new messages below.
Rules:
- Keep every fact from the existing summary unless a new message contradicts it.
- Write at most 6 short bullet points.
- Only record information relevant to the topics of the conversation.
- Reply with the updated summary only.`

// LLMSummarizer summarizes through a provider.Generator.
type LLMSummarizer struct {
	gen provider.Generator
}

// NewLLMSummarizer creates a summarizer backed by gen.
func NewLLMSummarizer(gen provider.Generator) *LLMSummarizer {
	return &LLMSummarizer{gen: gen}
}

// Summarize implements Summarizer.
func (s *LLMSummarizer) Summarize(ctx context.Context, currentSummary string, recent []provider.LLMMessage) (string, error) {
	msgs := []provider.LLMMessage{
		{Role: provider.MessageRoleSystem, Content: summaryInstruction},
		{Role: provider.MessageRoleUser, Content: formatSummaryInput(currentSummary, recent)},
	}

	out, err := s.gen.Generate(ctx, msgs, false)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSummarizationFailed, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrSummarizationFailed
	}
	return out, nil
}

func formatSummaryInput(currentSummary string, recent []provider.LLMMessage) string {
	var b strings.Builder
	b.WriteString("Existing summary:\n")
	if s := strings.TrimSpace(currentSummary); s != "" {
		b.WriteString(s)
	} else {
		b.WriteString("(none)")
	}
	b.WriteString("\n\nNew messages:\n")
	for _, m := range recent {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	return b.String()
}

var _ Summarizer = (*LLMSummarizer)(nil)
