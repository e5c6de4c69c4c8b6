package cron

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
)

// simpleJob is a minimal Job for scheduler tests.
type simpleJob struct {
	name     string
	schedule string
	runFunc  func(ctx context.Context) error
	mu       sync.Mutex
	calls    int
}

func (j *simpleJob) Name() string     { return j.name }
func (j *simpleJob) Schedule() string { return j.schedule }
func (j *simpleJob) Run(ctx context.Context) error {
	j.mu.Lock()
	j.calls++
	j.mu.Unlock()
	if j.runFunc != nil {
		return j.runFunc(ctx)
	}
	return nil
}

func TestScheduler_RegisterJob_DuplicateName(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())

	err := s.RegisterJob(&simpleJob{name: "test", schedule: "* * * * *"})
	if err != nil {
		t.Fatalf("first registration should succeed: %v", err)
	}

	err = s.RegisterJob(&simpleJob{name: "test", schedule: "* * * * *"})
	if err == nil {
		t.Fatal("duplicate registration should fail")
	}
}

func TestScheduler_Start_InvalidSchedule(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&simpleJob{name: "bad", schedule: "invalid"})

	err := s.Start()
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&simpleJob{name: "noop", schedule: "* * * * *"})

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestScheduler_NilLogger(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil) // should not panic
	if s.logger == nil {
		t.Fatal("logger should default to a discarding logger")
	}
}

func TestScheduler_RunNow(t *testing.T) {
	t.Parallel()

	job := &simpleJob{name: "sweep", schedule: "0 0 1 1 *"}
	s := NewScheduler(slog.Default())
	if err := s.RegisterJob(job); err != nil {
		t.Fatal(err)
	}

	if !s.RunNow("sweep") {
		t.Fatal("RunNow should run a registered job")
	}
	if s.RunNow("missing") {
		t.Error("RunNow should report false for an unknown job")
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	if job.calls != 1 {
		t.Errorf("calls = %d, want 1", job.calls)
	}
}

func TestScheduler_NoParallelExecution(t *testing.T) {
	t.Parallel()

	var concurrent atomic.Int32
	var maxConcurrent atomic.Int32
	release := make(chan struct{})
	entered := make(chan struct{}, 1)

	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&simpleJob{
		name:     "slow",
		schedule: "0 0 1 1 *",
		runFunc: func(_ context.Context) error {
			c := concurrent.Add(1)
			for {
				old := maxConcurrent.Load()
				if c <= old || maxConcurrent.CompareAndSwap(old, c) {
					break
				}
			}
			select {
			case entered <- struct{}{}:
			default:
			}
			<-release
			concurrent.Add(-1)
			return nil
		},
	})

	done := make(chan bool)
	go func() { done <- s.RunNow("slow") }()
	<-entered

	var wg sync.WaitGroup
	var skipped atomic.Int32
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !s.RunNow("slow") {
				skipped.Add(1)
			}
		}()
	}
	wg.Wait()
	close(release)

	if !<-done {
		t.Error("first run should have executed")
	}
	if skipped.Load() != 10 {
		t.Errorf("skipped = %d, want 10", skipped.Load())
	}
	if maxConcurrent.Load() > 1 {
		t.Errorf("max concurrent = %d, want <= 1", maxConcurrent.Load())
	}
}

func TestScheduler_StopCancelsJobs(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	var sawCancel atomic.Bool
	_ = s.RegisterJob(&simpleJob{
		name:     "ctx",
		schedule: "0 0 1 1 *",
		runFunc: func(ctx context.Context) error {
			sawCancel.Store(ctx.Err() != nil)
			return nil
		},
	})
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.RunNow("ctx")
	if !sawCancel.Load() {
		t.Error("jobs run after Stop should see a cancelled context")
	}
	if got := s.Jobs(); len(got) != 1 || got[0] != "ctx" {
		t.Errorf("Jobs() = %v", got)
	}
}

func TestScheduler_JobError(t *testing.T) {
	t.Parallel()

	// Verify that job errors don't crash the scheduler.
	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&simpleJob{
		name:     "failing",
		schedule: "* * * * *",
		runFunc: func(_ context.Context) error {
			return errors.New("job failed")
		},
	})

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// The scheduler should still be running after a job error.
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	// Stop without Start should not panic.
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}
