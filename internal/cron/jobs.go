package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Default job settings.
const (
	DefaultIdleSchedule       = "*/5 * * * *"
	DefaultCompactionSchedule = "0 * * * *"
	DefaultMaxIdle            = 24 * time.Hour
)

// IdleSweeper drops sessions that have been idle for too long.
type IdleSweeper interface {
	CleanupIdle(maxIdle time.Duration) int
}

// Compactor compacts the history of live sessions.
type Compactor interface {
	SessionIDs() []string
	MaybeCompact(ctx context.Context, id string) (bool, error)
}

// IdleCleanupJob removes sessions that have been idle longer than MaxIdle.
type IdleCleanupJob struct {
	Sweeper      IdleSweeper
	MaxIdle      time.Duration // zero = DefaultMaxIdle
	Logger       *slog.Logger
	ScheduleExpr string // empty = DefaultIdleSchedule
}

// Compile-time interface check.
var _ Job = (*IdleCleanupJob)(nil)

// Name implements Job.
func (j *IdleCleanupJob) Name() string { return "idle_cleanup" }

// Schedule implements Job.
func (j *IdleCleanupJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultIdleSchedule
}

// Run sweeps sessions idle longer than MaxIdle.
func (j *IdleCleanupJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cron: idle cleanup cancelled: %w", err)
	}
	maxIdle := j.MaxIdle
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}
	if n := j.Sweeper.CleanupIdle(maxIdle); n > 0 && j.Logger != nil {
		j.Logger.Info("pruned idle sessions", "count", n, "max_idle", maxIdle)
	}
	return nil
}

// CompactionJob runs MaybeCompact over every live session so that
// sessions nobody reads are still kept within budget.
type CompactionJob struct {
	Compactor    Compactor
	Logger       *slog.Logger
	ScheduleExpr string // empty = DefaultCompactionSchedule
}

// Compile-time interface check.
var _ Job = (*CompactionJob)(nil)

// Name implements Job.
func (j *CompactionJob) Name() string { return "memory_compaction" }

// Schedule implements Job.
func (j *CompactionJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultCompactionSchedule
}

// Run compacts each session in turn. Per-session failures are logged and
// do not stop the sweep.
func (j *CompactionJob) Run(ctx context.Context) error {
	compacted, failed := 0, 0
	for _, id := range j.Compactor.SessionIDs() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cron: memory compaction cancelled: %w", err)
		}
		ok, err := j.Compactor.MaybeCompact(ctx, id)
		if err != nil {
			failed++
			if j.Logger != nil {
				j.Logger.Warn("session compaction failed", "session", id, "error", err)
			}
		}
		if ok {
			compacted++
		}
	}
	if compacted+failed > 0 && j.Logger != nil {
		j.Logger.Info("compaction sweep finished", "compacted", compacted, "failed", failed)
	}
	return nil
}
