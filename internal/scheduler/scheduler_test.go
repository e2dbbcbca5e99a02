package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"SignalBacktest/internal/model"
	"SignalBacktest/internal/recorder"
	"SignalBacktest/internal/runner"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	err     error
	last    *runner.Batch
	release chan struct{}
}

func (f *fakeRunner) RunBatch(_ context.Context, pattern string) (*runner.Batch, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.last = &runner.Batch{Pattern: pattern, Runs: []runner.RunSummary{{SignalFile: "s.csv", Report: model.Report{NTrades: 2}}}}
	return f.last, nil
}

func (f *fakeRunner) Last() *runner.Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeNotifier) SendWithRetry(_ context.Context, text string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, text)
	return nil
}

type fakeRecorder struct {
	recorder.NoopRecorder
	runs []recorder.RunSummary
}

func (f *fakeRecorder) LastRuns(limit int) ([]recorder.RunSummary, error) {
	return f.runs, nil
}

func TestRunNow_NotifiesSummary(t *testing.T) {
	fr := &fakeRunner{}
	fn := &fakeNotifier{}
	s := NewScheduler(context.Background(), fr, fn, nil, "data/*.csv", nil)
	if !s.RunNow() {
		t.Fatalf("expected batch to run")
	}
	if fr.calls != 1 {
		t.Errorf("expected 1 batch call, got %d", fr.calls)
	}
	if len(fn.msgs) != 1 || !strings.Contains(fn.msgs[0], "trades 2") {
		t.Errorf("unexpected notifications %v", fn.msgs)
	}
}

func TestRunNow_NotifiesFailure(t *testing.T) {
	fn := &fakeNotifier{}
	s := NewScheduler(context.Background(), &fakeRunner{err: errors.New("boom")}, fn, nil, "x", nil)
	s.RunNow()
	if len(fn.msgs) != 1 || !strings.Contains(fn.msgs[0], "Batch failed: boom") {
		t.Errorf("unexpected notifications %v", fn.msgs)
	}
}

func TestRunNow_SkipsWhileRunning(t *testing.T) {
	fr := &fakeRunner{release: make(chan struct{})}
	s := NewScheduler(context.Background(), fr, nil, nil, "x", nil)
	done := make(chan bool)
	go func() { done <- s.RunNow() }()

	deadline := time.Now().Add(2 * time.Second)
	for !s.running.Load() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if s.RunNow() {
		t.Errorf("expected overlapping trigger to be skipped")
	}
	if got := s.HandleCommand("/run"); got != "A batch is already running." {
		t.Errorf("unexpected reply %q", got)
	}
	close(fr.release)
	if !<-done {
		t.Errorf("expected first batch to run")
	}
}

func TestHandleCommand(t *testing.T) {
	fr := &fakeRunner{}
	rec := &fakeRecorder{runs: []recorder.RunSummary{{SignalFile: "a.csv", Mode: "B", NTrades: 1}}}
	s := NewScheduler(context.Background(), fr, nil, rec, "x", nil)

	if got := s.HandleCommand("/status"); got != "No batch has finished yet." {
		t.Errorf("unexpected status reply %q", got)
	}
	s.RunNow()
	if got := s.HandleCommand("/status"); !strings.Contains(got, "Files: 1") {
		t.Errorf("unexpected status reply %q", got)
	}
	if got := s.HandleCommand("/last"); !strings.Contains(got, "a.csv [B]") {
		t.Errorf("unexpected last reply %q", got)
	}
	if got := s.HandleCommand("hello"); !strings.Contains(got, "/run") {
		t.Errorf("expected help, got %q", got)
	}
}

func TestRegisterBatch(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeRunner{}, nil, nil, "x", nil)
	if err := s.RegisterBatch("0 0 6 * * 1-5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.RegisterBatch("not a cron"); err == nil {
		t.Errorf("expected invalid expression to fail")
	}
	if n := len(s.Cron.Entries()); n != 1 {
		t.Errorf("expected 1 entry, got %d", n)
	}
}
