package memory_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	ctxengine "github.com/flemzord/chatmem/internal/context"
	"github.com/flemzord/chatmem/internal/memory"
	"github.com/flemzord/chatmem/internal/provider"
	"github.com/flemzord/chatmem/internal/provider/providertest"
)

type fakeTime struct {
	mu      sync.Mutex
	current time.Time
}

func newFakeTime() *fakeTime {
	return &fakeTime{current: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeTime) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

// tinyBudget is a 100-token window.
func tinyBudget() ctxengine.BudgetConfig {
	return ctxengine.BudgetConfig{
		MaxContextTokens: 100,
		MaxOutputTokens:  50,
		BufferTokens:     ctxengine.Tokens(10),
	}
}

// text returns content of exactly n runes starting with prefix.
func text(prefix string, n int) string {
	if len(prefix) >= n {
		return prefix[:n]
	}
	return prefix + strings.Repeat(".", n-len(prefix))
}

func newEngine(t *testing.T, cfg memory.Config, opts ...memory.Option) *memory.Engine {
	t.Helper()
	e, err := memory.New(cfg, opts...)
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	return e
}

func summarizerWith(gen *providertest.MockGenerator) memory.Option {
	return memory.WithSummarizer(ctxengine.NewLLMSummarizer(gen))
}

func mustAdd(t *testing.T, e *memory.Engine, id string, role provider.MessageRole, content string) memory.AddResult {
	t.Helper()
	res, err := e.AddMessage(context.Background(), id, role, content, "u1")
	if err != nil {
		t.Fatalf("AddMessage(%s): %v", role, err)
	}
	return res
}

// fakeDurable records persisted counts and serves a fixed history.
type fakeDurable struct {
	mu       sync.Mutex
	history  []provider.LLMMessage
	counts   map[string]int
	purged   []string
	restores int
}

func (d *fakeDurable) Restore(_ context.Context, _, _ string) ([]provider.LLMMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.restores++
	return d.history, nil
}

func (d *fakeDurable) PersistCount(_ context.Context, sessionID, _ string, count int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.counts == nil {
		d.counts = make(map[string]int)
	}
	d.counts[sessionID] = count
	return nil
}

func (d *fakeDurable) MessageCount(_ context.Context, sessionID string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[sessionID], nil
}

func (d *fakeDurable) Purge(_ context.Context, sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.purged = append(d.purged, sessionID)
	return nil
}

// failingSearcher always errors.
type failingSearcher struct{ calls int }

func (f *failingSearcher) Search(context.Context, memory.SearchQuery) ([]memory.SearchResult, error) {
	f.calls++
	return nil, context.DeadlineExceeded
}
