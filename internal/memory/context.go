package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	ctxengine "github.com/flemzord/chatmem/internal/context"
	"github.com/flemzord/chatmem/internal/provider"
)

// ContextBundle is the context assembled for one completion request.
type ContextBundle struct {
	SessionID  string                  `json:"session_id"`
	History    []provider.LLMMessage   `json:"history"`
	Summary    string                  `json:"summary,omitempty"`
	Relevant   []SearchResult          `json:"relevant"`
	Usage      ctxengine.UsageSnapshot `json:"usage"`
	Truncated  bool                    `json:"truncated"`
	Summarized bool                    `json:"summarized"`
}

// Prompt builds the message list for a completion: the system prompt, the
// running summary, relevant earlier answers, then the recent history.
func (b ContextBundle) Prompt(systemPrompt string) []provider.LLMMessage {
	out := make([]provider.LLMMessage, 0, len(b.History)+3)
	if systemPrompt != "" {
		out = append(out, provider.LLMMessage{Role: provider.MessageRoleSystem, Content: systemPrompt})
	}
	if strings.TrimSpace(b.Summary) != "" {
		out = append(out, ctxengine.SummaryMessage(b.Summary))
	}
	if s := FormatRelevant(b.Relevant); s != "" {
		out = append(out, provider.LLMMessage{Role: provider.MessageRoleSystem, Content: s})
	}
	return append(out, b.History...)
}

// FormatRelevant formats search results into a single prompt section.
// Returns an empty string if there are none.
func FormatRelevant(results []SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Relevant Earlier Answers\n\n")
	for _, r := range results {
		b.WriteString("- ")
		b.WriteString(r.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// GetContext assembles the context bundle for the next completion of a
// session, creating the session when unknown.
//
// It is a mutating read: when the stored history no longer fits with
// maxOutputTokens reserved (the optimal output size when 0), the history
// is truncated and the removed messages may be summarized. That update is
// atomic and is not applied if ctx is cancelled first. When the reduced
// history still overflows, the populated bundle is returned together with
// an error wrapping ErrContextWindowExceeded.
func (e *Engine) GetContext(ctx context.Context, id, query, ownerID string, maxOutputTokens int) (ContextBundle, error) {
	if id == "" {
		id = uuid.NewString()
	}

	ctx, span := e.tracer.Start(ctx, "memory.GetContext", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	e.lanes.Acquire(id)
	sess, err := e.session(ctx, id, ownerID)
	if err != nil {
		e.lanes.Release(id)
		span.RecordError(err)
		return ContextBundle{}, fmt.Errorf("get context: %w", err)
	}
	res, err := e.compactLocked(ctx, sess, maxOutputTokens)
	bundle := ContextBundle{
		SessionID:  id,
		History:    sess.Recent(e.cfg.RecentWindow),
		Summary:    sess.Summary,
		Usage:      res.usage,
		Truncated:  res.truncated,
		Summarized: res.summarized,
	}
	owner := sess.OwnerID
	e.lanes.Release(id)

	if err != nil {
		span.RecordError(err)
		return ContextBundle{}, err
	}

	bundle.Relevant = e.relevant(ctx, query, owner, id, bundle.History)
	span.SetAttributes(
		attribute.Int("context.history", len(bundle.History)),
		attribute.Int("context.relevant", len(bundle.Relevant)),
		attribute.Bool("context.truncated", bundle.Truncated),
	)

	if res.overflow {
		e.metrics.windowExceeded()
		e.logger.Warn("context window exceeded after truncation",
			"session", id,
			"usage", res.usage.UsagePercentage,
		)
		return bundle, fmt.Errorf("get context for session %s: %w", id, ErrContextWindowExceeded)
	}
	return bundle, nil
}

// relevant searches older assistant answers for each query derived from
// the message, merges them by content keeping the best score, drops those
// already in the chronological slice, and returns the best
// RelevantLimit. Search failures degrade to fewer results.
func (e *Engine) relevant(ctx context.Context, message, ownerID, sessionID string, history []provider.LLMMessage) []SearchResult {
	if e.searcher == nil || strings.TrimSpace(message) == "" {
		return []SearchResult{}
	}

	inHistory := make(map[string]struct{}, len(history))
	for _, m := range history {
		inHistory[m.Content] = struct{}{}
	}

	best := make(map[string]SearchResult)
	for _, q := range e.deriver.DeriveQueries(message) {
		results, err := e.searcher.Search(ctx, SearchQuery{
			Text:      q,
			OwnerID:   ownerID,
			SessionID: sessionID,
			Role:      provider.MessageRoleAssistant,
			Limit:     e.cfg.SearchLimit,
		})
		if err != nil {
			e.metrics.searchFailure()
			e.logger.Warn("relevance search failed", "session", sessionID, "query", q, "error", err)
			continue
		}
		for _, r := range results {
			if _, dup := inHistory[r.Content]; dup {
				continue
			}
			if prev, ok := best[r.Content]; !ok || r.Score > prev.Score {
				best[r.Content] = r
			}
		}
	}

	out := make([]SearchResult, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b SearchResult) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.Content, b.Content)
	})
	if len(out) > e.cfg.RelevantLimit {
		out = out[:e.cfg.RelevantLimit]
	}
	return out
}
