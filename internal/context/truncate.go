package ctxengine

import (
	"strings"

	"github.com/flemzord/chatmem/internal/provider"
)

// summaryNeededAbove is the removed-message count past which a truncation
// should be followed by a summary.
const summaryNeededAbove = 4

// TruncationInfo describes what a Truncate call did.
type TruncationInfo struct {
	Truncated     bool                  `json:"truncated"`
	Removed       []provider.LLMMessage `json:"removed,omitempty"`
	OriginalCount int                   `json:"original_count"`
	FinalCount    int                   `json:"final_count"`
	FinalTokens   int                   `json:"final_tokens"`
}

// NeedsSummary reports whether enough messages were removed to justify a
// summarization call.
func (i TruncationInfo) NeedsSummary() bool {
	return len(i.Removed) > summaryNeededAbove
}

// Truncator reduces message lists to fit a Budget. It never calls a
// summarizer; callers decide what to do with the removed messages.
type Truncator struct {
	budget *Budget
}

// NewTruncator creates a Truncator bound to budget.
func NewTruncator(budget *Budget) *Truncator {
	return &Truncator{budget: budget}
}

// Truncate keeps the longest run of most recent messages that fits in
// max - expectedOutput - buffer. With preserveSystem, system messages are
// always kept and placed first. The input slice is never modified.
func (t *Truncator) Truncate(msgs []provider.LLMMessage, expectedOutput int, preserveSystem bool) ([]provider.LLMMessage, TruncationInfo) {
	est := t.budget.estimator
	info := TruncationInfo{OriginalCount: len(msgs)}

	if !t.budget.ShouldTruncate(msgs, expectedOutput) {
		out := append([]provider.LLMMessage(nil), msgs...)
		info.FinalCount = len(out)
		info.FinalTokens = EstimateMessages(est, out)
		return out, info
	}

	var system, rest []provider.LLMMessage
	if preserveSystem {
		for _, m := range msgs {
			if m.Role == provider.MessageRoleSystem {
				system = append(system, m)
			} else {
				rest = append(rest, m)
			}
		}
	} else {
		rest = msgs
	}

	cfg := t.budget.cfg
	target := cfg.MaxContextTokens - expectedOutput - cfg.Buffer() - EstimateMessages(est, system)

	cut := len(rest)
	used := 0
	for cut > 0 {
		cost := EstimateMessage(est, rest[cut-1].Role, rest[cut-1].Content)
		if used+cost > target {
			break
		}
		used += cost
		cut--
	}

	out := make([]provider.LLMMessage, 0, len(system)+len(rest)-cut)
	out = append(out, system...)
	out = append(out, rest[cut:]...)

	info.Truncated = true
	info.Removed = append([]provider.LLMMessage(nil), rest[:cut]...)
	info.FinalCount = len(out)
	info.FinalTokens = EstimateMessages(est, out)
	return out, info
}

// SummaryPrefix labels the system message carrying a running summary.
const SummaryPrefix = "[Conversation Summary]\n"

// PrependSummary returns msgs with summary spliced in as a leading system
// message. An empty summary returns a copy of msgs.
func PrependSummary(summary string, msgs []provider.LLMMessage) []provider.LLMMessage {
	if strings.TrimSpace(summary) == "" {
		return append([]provider.LLMMessage(nil), msgs...)
	}
	out := make([]provider.LLMMessage, 0, len(msgs)+1)
	out = append(out, SummaryMessage(summary))
	return append(out, msgs...)
}

// SummaryMessage wraps summary text in a labelled system message.
func SummaryMessage(summary string) provider.LLMMessage {
	var b strings.Builder
	b.WriteString(SummaryPrefix)
	b.WriteString(summary)
	return provider.LLMMessage{Role: provider.MessageRoleSystem, Content: b.String()}
}
