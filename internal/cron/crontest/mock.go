// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flemzord/chatmem/internal/cron"
)

// MockJob is a configurable test double for cron.Job.
type MockJob struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	mu       sync.Mutex
	calls    int
	lastCall time.Time
}

// Compile-time interface check.
var _ cron.Job = (*MockJob)(nil)

// Name implements cron.Job.
func (m *MockJob) Name() string { return m.NameVal }

// Schedule implements cron.Job.
func (m *MockJob) Schedule() string { return m.ScheduleVal }

// Run implements cron.Job and increments the call counter.
func (m *MockJob) Run(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	m.lastCall = time.Now()
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// CallCount returns the number of times Run was called.
func (m *MockJob) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastCall returns the time of the last Run call.
func (m *MockJob) LastCall() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCall
}

// MockSweeper is a test double for cron.IdleSweeper.
type MockSweeper struct {
	CleanupFunc  func(maxIdle time.Duration) int
	CleanupCalls atomic.Int32
}

// CleanupIdle implements cron.IdleSweeper.
func (m *MockSweeper) CleanupIdle(maxIdle time.Duration) int {
	m.CleanupCalls.Add(1)
	if m.CleanupFunc != nil {
		return m.CleanupFunc(maxIdle)
	}
	return 0
}

// MockCompactor is a test double for cron.Compactor.
type MockCompactor struct {
	IDs         []string
	CompactFunc func(ctx context.Context, id string) (bool, error)

	mu        sync.Mutex
	compacted []string
}

// SessionIDs implements cron.Compactor.
func (m *MockCompactor) SessionIDs() []string { return m.IDs }

// MaybeCompact implements cron.Compactor.
func (m *MockCompactor) MaybeCompact(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	m.compacted = append(m.compacted, id)
	m.mu.Unlock()

	if m.CompactFunc != nil {
		return m.CompactFunc(ctx, id)
	}
	return false, nil
}

// Compacted returns the session ids passed to MaybeCompact, in order.
func (m *MockCompactor) Compacted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.compacted...)
}
