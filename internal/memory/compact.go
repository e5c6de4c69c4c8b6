package memory

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ctxengine "github.com/flemzord/chatmem/internal/context"
	"github.com/flemzord/chatmem/internal/provider"
	"github.com/flemzord/chatmem/internal/session"
)

// Summarization triggers, used as metric and log labels.
const (
	triggerTokens   = "tokens"
	triggerCritical = "critical"
	triggerWarnings = "warnings"
	triggerTurns    = "turns"
	triggerOverflow = "truncation"
)

// summaryTrigger returns the first summarization condition met by the
// session's latest usage, or "" when none is.
func (e *Engine) summaryTrigger(sess *session.Session, u ctxengine.UsageSnapshot) string {
	switch {
	case u.TotalUsed >= e.cfg.Budget.SummarizationTokenThreshold:
		return triggerTokens
	case u.IsCritical || u.IsOverflow:
		return triggerCritical
	case sess.RecentWarnings(defaultWarningWindow) >= defaultWarningCount:
		return triggerWarnings
	case sess.TurnsSinceSummary >= e.cfg.TurnsThreshold && !u.IsWarning:
		return triggerTurns
	default:
		return ""
	}
}

// retainedMessages returns how many history messages survive a trim at
// usage level u.
func (e *Engine) retainedMessages(u ctxengine.UsageSnapshot) int {
	r := e.cfg.Retention
	switch {
	case u.IsCritical || u.IsOverflow:
		return 2 * r.CriticalPairs
	case u.IsWarning:
		return 2 * r.WarningPairs
	default:
		return 2 * r.NormalPairs
	}
}

// maybeSummarize folds at-risk messages into the running summary and trims
// the history when a trigger fires. The trim happens even when the
// summarizer fails. It reports whether a new summary was produced. The
// caller must hold the session's lane.
func (e *Engine) maybeSummarize(ctx context.Context, sess *session.Session, u ctxengine.UsageSnapshot) bool {
	trigger := e.summaryTrigger(sess, u)
	if trigger == "" {
		return false
	}

	keep := e.retainedMessages(u)
	var atRisk []provider.LLMMessage
	if over := len(sess.History) - keep; over > 0 {
		atRisk = sess.History[:over]
	} else {
		n := min(2*sess.TurnsSinceSummary, len(sess.History))
		atRisk = sess.History[len(sess.History)-n:]
	}

	summary, ok := e.summarize(ctx, sess, atRisk, trigger)

	// Compute the new state fully before swapping it in.
	trimmed := sess.Recent(keep)
	removed := len(sess.History) - len(trimmed)

	sess.History = trimmed
	sess.Summary = summary
	sess.TurnsSinceSummary = 0

	e.metrics.trimmed(removed)
	if removed > 0 {
		e.logger.Debug("history trimmed", "session", sess.ID, "removed", removed, "kept", len(trimmed), "trigger", trigger)
	}
	return ok
}

// summarize runs the summarizer over recent with the session's current
// summary. On failure the current summary is returned unchanged.
func (e *Engine) summarize(ctx context.Context, sess *session.Session, recent []provider.LLMMessage, trigger string) (string, bool) {
	if e.summarizer == nil || len(recent) == 0 {
		return sess.Summary, false
	}

	ctx, span := e.tracer.Start(ctx, "memory.Summarize", trace.WithAttributes(
		attribute.String("session.id", sess.ID),
		attribute.String("summary.trigger", trigger),
		attribute.Int("summary.messages", len(recent)),
	))
	defer span.End()

	summary, err := e.summarizer.Summarize(ctx, sess.Summary, recent)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "summarization failed")
		e.metrics.summarization("failure", trigger)
		e.logger.Warn("summarization failed, keeping previous summary",
			"session", sess.ID,
			"trigger", trigger,
			"error", err,
		)
		return sess.Summary, false
	}

	e.metrics.summarization("success", trigger)
	e.logger.Info("session summarized", "session", sess.ID, "trigger", trigger, "messages", len(recent))
	return summary, true
}

// compaction is the outcome of compactLocked.
type compaction struct {
	usage      ctxengine.UsageSnapshot
	truncated  bool
	summarized bool
	overflow   bool
}

// compactLocked truncates the session to fit the window with
// maxOutputTokens reserved and summarizes the removed messages when enough
// were dropped. When maxOutputTokens is 0 the optimal output size is
// reserved, capped so that the summary and the newest message still fit.
// History is cut as a suffix in transcript order: system messages inside
// the history are dropped like any other old message. The new state is
// computed first and swapped in only if ctx is still live. The newest
// message is never dropped, so a single oversized message reports an
// overflow. The caller must hold the session's lane.
func (e *Engine) compactLocked(ctx context.Context, sess *session.Session, maxOutputTokens int) (compaction, error) {
	full := ctxengine.PrependSummary(sess.Summary, sess.History)
	summaryCost := ctxengine.EstimateMessages(e.estimator, full[:len(full)-len(sess.History)])
	expected := maxOutputTokens
	if expected <= 0 {
		expected = e.reservedOutput(sess, full, summaryCost)
	}

	if !e.budget.ShouldTruncate(full, expected) {
		usage := e.budget.CalculateUsage(full, expected)
		return compaction{usage: usage, overflow: usage.IsOverflow}, nil
	}

	kept, info := e.truncator.Truncate(sess.History, expected+summaryCost, false)
	if len(kept) == 0 && len(sess.History) > 0 {
		kept = []provider.LLMMessage{sess.History[len(sess.History)-1]}
		info.Removed = info.Removed[:len(info.Removed)-1]
	}
	removed := info.Removed
	if len(removed) == 0 {
		usage := e.budget.CalculateUsage(full, expected)
		return compaction{usage: usage, overflow: usage.IsOverflow}, nil
	}

	summary := sess.Summary
	summarized := false
	attempted := info.NeedsSummary()
	if attempted {
		summary, summarized = e.summarize(ctx, sess, removed, triggerOverflow)
	}

	if err := ctx.Err(); err != nil {
		return compaction{}, fmt.Errorf("compact session %s: %w", sess.ID, err)
	}

	sess.History = kept
	sess.Summary = summary
	if attempted {
		sess.TurnsSinceSummary = 0
	}
	e.metrics.truncation(len(removed))
	e.logger.Debug("history truncated", "session", sess.ID, "removed", len(removed), "kept", len(kept))

	usage := e.budget.CalculateUsage(ctxengine.PrependSummary(summary, kept), expected)
	return compaction{
		usage:      usage,
		truncated:  true,
		summarized: summarized,
		overflow:   usage.IsOverflow,
	}, nil
}

// reservedOutput is the reply size reserved when the caller gives none:
// the optimal output size, lowered until the summary and the newest
// message fit beside it and the buffer.
func (e *Engine) reservedOutput(sess *session.Session, full []provider.LLMMessage, summaryCost int) int {
	optimal := e.budget.OptimalOutputTokens(full)
	room := e.cfg.Budget.MaxContextTokens - e.cfg.Budget.Buffer() - summaryCost -
		ctxengine.EstimateMessages(e.estimator, sess.Recent(1))
	return max(0, min(optimal, room))
}

// MaybeCompact runs the truncate and summarize step of GetContext on its
// own. It reports whether the session was truncated. Unknown sessions are
// left alone. ErrContextWindowExceeded is returned when the session still
// overflows afterwards.
func (e *Engine) MaybeCompact(ctx context.Context, id string) (bool, error) {
	if _, ok := e.store.Get(id); !ok {
		return false, nil
	}

	ctx, span := e.tracer.Start(ctx, "memory.MaybeCompact", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	e.lanes.Acquire(id)
	defer e.lanes.Release(id)

	sess, ok := e.store.Get(id)
	if !ok {
		return false, nil
	}
	res, err := e.compactLocked(ctx, sess, 0)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if res.overflow {
		e.metrics.windowExceeded()
		return res.truncated, fmt.Errorf("compact session %s: %w", id, ErrContextWindowExceeded)
	}
	return res.truncated, nil
}
