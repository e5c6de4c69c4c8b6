// Package memory implements the conversation memory engine: it owns the
// session table, decides when to summarize, and assembles token-bounded
// context bundles from the running summary, recent history and relevant
// older messages.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	ctxengine "github.com/flemzord/chatmem/internal/context"
	"github.com/flemzord/chatmem/internal/provider"
	"github.com/flemzord/chatmem/internal/session"
)

const tracerName = "github.com/flemzord/chatmem/internal/memory"

// AddResult is returned by AddMessage.
type AddResult struct {
	SessionID    string                  `json:"session_id"`
	Usage        ctxengine.UsageSnapshot `json:"usage"`
	Summarized   bool                    `json:"summarized"`
	MessageCount int                     `json:"message_count"`
}

// SessionInfo is a serializable snapshot of a session.
type SessionInfo struct {
	ID                string                `json:"id"`
	OwnerID           string                `json:"owner_id"`
	CreatedAt         time.Time             `json:"created_at"`
	LastActivity      time.Time             `json:"last_activity"`
	MessageCount      int                   `json:"message_count"`
	HistoryLength     int                   `json:"history_length"`
	Summary           string                `json:"summary,omitempty"`
	TurnsSinceSummary int                   `json:"turns_since_summary"`
	Usage             []session.UsageRecord `json:"usage,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore replaces the default in-memory session table.
func WithStore(s session.Store) Option { return func(e *Engine) { e.store = s } }

// WithSummarizer sets the summarizer. Without one, triggers still trim
// history but the summary never changes.
func WithSummarizer(s ctxengine.Summarizer) Option { return func(e *Engine) { e.summarizer = s } }

// WithSearcher sets the relevance searcher. If it also implements Indexer
// and no indexer was set, it is used as the indexer.
func WithSearcher(s Searcher) Option { return func(e *Engine) { e.searcher = s } }

// WithIndexer sets the indexer fed on every append.
func WithIndexer(i Indexer) Option { return func(e *Engine) { e.indexer = i } }

// WithDurableStore sets the store used to rehydrate sessions and persist
// message counts.
func WithDurableStore(d DurableStore) Option { return func(e *Engine) { e.durable = d } }

// WithQueryDeriver replaces the default KeywordDeriver.
func WithQueryDeriver(d QueryDeriver) Option { return func(e *Engine) { e.deriver = d } }

// WithLogger injects a structured logger. When nil or omitted, log output
// is discarded.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithTracer sets the OpenTelemetry tracer. Defaults to the global
// provider's tracer.
func WithTracer(t trace.Tracer) Option { return func(e *Engine) { e.tracer = t } }

// WithEstimator replaces the default CharEstimator.
func WithEstimator(est ctxengine.TokenEstimator) Option {
	return func(e *Engine) { e.estimator = est }
}

// WithClock sets the engine's time source. It also drives the default
// session store.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// Engine is the conversation memory engine. It is safe for concurrent use:
// operations on one session are serialized by a per-session lane while
// different sessions proceed in parallel.
type Engine struct {
	cfg        Config
	budget     *ctxengine.Budget
	truncator  *ctxengine.Truncator
	estimator  ctxengine.TokenEstimator
	store      session.Store
	lanes      *session.LaneLock
	summarizer ctxengine.Summarizer
	searcher   Searcher
	indexer    Indexer
	durable    DurableStore
	deriver    QueryDeriver
	logger     *slog.Logger
	metrics    *Metrics
	tracer     trace.Tracer
	now        func() time.Time
}

// New creates an Engine from cfg.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("memory config: %w", err)
	}
	cfg = cfg.withDefaults()

	e := &Engine{cfg: cfg, lanes: session.NewLaneLock()}
	for _, opt := range opts {
		opt(e)
	}

	if e.estimator == nil {
		e.estimator = ctxengine.NewCharEstimator(cfg.CharsPerToken)
	}
	e.budget = ctxengine.NewBudget(cfg.Budget, e.estimator)
	e.truncator = ctxengine.NewTruncator(e.budget)

	if e.now == nil {
		e.now = time.Now
	}
	if e.store == nil {
		s := session.NewInMemoryStore(cfg.MaxSessions)
		s.SetClock(e.now)
		e.store = s
	}
	if e.searcher == nil {
		e.searcher = NewKeywordIndex()
	}
	if e.indexer == nil {
		if ix, ok := e.searcher.(Indexer); ok {
			e.indexer = ix
		}
	}
	if e.deriver == nil {
		e.deriver = KeywordDeriver{Keywords: cfg.DomainKeywords, MaxQueries: cfg.MaxQueries}
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	return e, nil
}

// Budget exposes the token budget calculator.
func (e *Engine) Budget() *ctxengine.Budget { return e.budget }

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// CreateSession registers a session. An existing id is a no-op, an unknown
// id is created, and an empty id gets a fresh one. The id is returned.
func (e *Engine) CreateSession(ctx context.Context, ownerID, id string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}

	e.lanes.Acquire(id)
	defer e.lanes.Release(id)

	if _, err := e.session(ctx, id, ownerID); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

// AddMessage appends a message to a session, creating the session when
// unknown, then records usage and runs summarization when a trigger fires.
// An empty id creates a new session; its id is in the result.
func (e *Engine) AddMessage(ctx context.Context, id string, role provider.MessageRole, content, ownerID string) (AddResult, error) {
	if !role.Valid() {
		return AddResult{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if id == "" {
		id = uuid.NewString()
	}

	ctx, span := e.tracer.Start(ctx, "memory.AddMessage", trace.WithAttributes(
		attribute.String("session.id", id),
		attribute.String("message.role", string(role)),
	))
	defer span.End()

	e.lanes.Acquire(id)
	defer e.lanes.Release(id)

	sess, err := e.session(ctx, id, ownerID)
	if err != nil {
		span.RecordError(err)
		return AddResult{}, fmt.Errorf("add message: %w", err)
	}

	sess.Append(role, content)
	e.store.Touch(id)
	e.metrics.message(string(role))

	now := e.now()
	if e.indexer != nil {
		rec := MessageRecord{OwnerID: sess.OwnerID, SessionID: id, Role: role, Content: content, CreatedAt: now}
		if err := e.indexer.Index(ctx, rec); err != nil {
			e.logger.Warn("indexing message failed", "session", id, "error", err)
		}
	}
	if e.durable != nil {
		if err := e.durable.PersistCount(ctx, id, sess.OwnerID, sess.MessageCount); err != nil {
			e.logger.Warn("persisting message count failed", "session", id, "error", err)
		}
	}

	usage := e.budget.CalculateUsage(ctxengine.PrependSummary(sess.Summary, sess.History), 0)
	sess.RecordUsage(now, usage)
	e.metrics.observeUsage(usage.UsagePercentage)
	span.SetAttributes(attribute.Float64("context.usage", usage.UsagePercentage))

	summarized := e.maybeSummarize(ctx, sess, usage)

	return AddResult{
		SessionID:    id,
		Usage:        usage,
		Summarized:   summarized,
		MessageCount: sess.MessageCount,
	}, nil
}

// DeleteSession removes a session and purges its durable and indexed data
// when the stores support it. It reports whether the session was live.
func (e *Engine) DeleteSession(ctx context.Context, id string) bool {
	e.lanes.Acquire(id)
	existed := e.store.Delete(id)
	e.lanes.Release(id)

	for _, p := range e.purgers(true) {
		if err := p.Purge(ctx, id); err != nil {
			e.logger.Warn("purging session data failed", "session", id, "error", err)
		}
	}

	e.lanes.Cleanup(e.store.ActiveIDs())
	e.metrics.setSessions(e.store.Len())
	return existed
}

// Stats reports message statistics for an owner from the first configured
// store that supports them.
func (e *Engine) Stats(ctx context.Context, ownerID string) (MessageStats, error) {
	for _, candidate := range []any{e.durable, e.searcher, e.indexer} {
		if sp, ok := candidate.(StatsProvider); ok {
			return sp.Stats(ctx, ownerID)
		}
	}
	return MessageStats{}, ErrStatsUnavailable
}

// purgers returns the distinct configured stores that can purge a
// session. Without durable, the durable store is left out, along with a
// searcher or indexer that is the durable store itself.
func (e *Engine) purgers(durable bool) []Purger {
	var out []Purger
	seen := map[Purger]struct{}{}
	for _, candidate := range []any{e.durable, e.searcher, e.indexer} {
		p, ok := candidate.(Purger)
		if !ok {
			continue
		}
		if !durable && e.durable != nil && candidate == any(e.durable) {
			continue
		}
		if _, done := seen[p]; done {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// CleanupIdle drops sessions idle for longer than maxIdle and releases
// their lanes. Each session is removed under its lane after checking it
// is still idle. In-process index data of removed sessions is purged; durable data is kept for
// rehydration. It returns the number of sessions removed.
func (e *Engine) CleanupIdle(maxIdle time.Duration) int {
	ctx := context.Background()
	indexes := e.purgers(false)

	var removed []string
	for _, id := range e.store.IdleIDs(maxIdle) {
		e.lanes.Acquire(id)
		if e.store.DeleteIdle(id, maxIdle) {
			removed = append(removed, id)
			for _, p := range indexes {
				if err := p.Purge(ctx, id); err != nil {
					e.logger.Warn("purging idle session data failed", "session", id, "error", err)
				}
			}
		}
		e.lanes.Release(id)
	}

	e.lanes.Cleanup(e.store.ActiveIDs())
	e.metrics.setSessions(e.store.Len())

	if len(removed) > 0 {
		e.logger.Info("idle sessions removed", "count", len(removed), "max_idle", maxIdle)
	}
	return len(removed)
}

// Session returns a snapshot of one session.
func (e *Engine) Session(id string) (SessionInfo, bool) {
	if _, ok := e.store.Get(id); !ok {
		return SessionInfo{}, false
	}

	e.lanes.Acquire(id)
	defer e.lanes.Release(id)

	sess, ok := e.store.Get(id)
	if !ok {
		return SessionInfo{}, false
	}
	return SessionInfo{
		ID:                sess.ID,
		OwnerID:           sess.OwnerID,
		CreatedAt:         sess.CreatedAt,
		LastActivity:      sess.LastActivity,
		MessageCount:      sess.MessageCount,
		HistoryLength:     len(sess.History),
		Summary:           sess.Summary,
		TurnsSinceSummary: sess.TurnsSinceSummary,
		Usage:             sess.UsageHistory(),
	}, true
}

// Sessions returns snapshots of every live session, oldest first.
func (e *Engine) Sessions() []SessionInfo {
	ids := e.store.ActiveIDs()
	out := make([]SessionInfo, 0, len(ids))
	for id := range ids {
		if info, ok := e.Session(id); ok {
			out = append(out, info)
		}
	}
	slices.SortFunc(out, func(a, b SessionInfo) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// SessionIDs returns the ids of every live session, sorted.
func (e *Engine) SessionIDs() []string {
	ids := make([]string, 0, e.store.Len())
	for id := range e.store.ActiveIDs() {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// session returns the session for id, creating and rehydrating it when
// unknown. The caller must hold the session's lane.
func (e *Engine) session(ctx context.Context, id, ownerID string) (*session.Session, error) {
	sess, created, err := e.store.GetOrCreate(id, ownerID)
	if err != nil {
		return nil, err
	}
	if !created {
		return sess, nil
	}

	e.metrics.setSessions(e.store.Len())
	e.logger.Debug("session created", "session", id, "owner", sess.OwnerID)

	if e.durable == nil {
		return sess, nil
	}
	msgs, err := e.durable.Restore(ctx, id, sess.OwnerID)
	if err != nil {
		e.logger.Warn("restoring session failed", "session", id, "error", err)
		return sess, nil
	}
	count, err := e.durable.MessageCount(ctx, id)
	if err != nil {
		e.logger.Warn("reading persisted message count failed", "session", id, "error", err)
	}
	if len(msgs) > 0 || count > 0 {
		sess.Restore(msgs, count)
		e.logger.Info("session restored", "session", id, "messages", len(msgs), "message_count", sess.MessageCount)
	}
	return sess, nil
}
