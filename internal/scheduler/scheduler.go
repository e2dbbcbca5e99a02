// Package scheduler triggers batch backtests on a cron schedule and answers
// chat commands about them.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"SignalBacktest/internal/notifier"
	"SignalBacktest/internal/recorder"
	"SignalBacktest/internal/runner"
)

// BatchRunner runs one batch over a signal file pattern.
type BatchRunner interface {
	RunBatch(ctx context.Context, pattern string) (*runner.Batch, error)
	Last() *runner.Batch
}

// Notifier delivers a message, retrying on failure.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages the cron batch task.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   BatchRunner
	Notifier Notifier // nil disables notifications
	Recorder recorder.Recorder
	Pattern  string
	Ctx      context.Context

	logger  *zap.Logger
	running atomic.Bool
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, run BatchRunner, n Notifier, rec recorder.Recorder, pattern string, logger *zap.Logger) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Runner:   run,
		Notifier: n,
		Recorder: rec,
		Pattern:  pattern,
		Ctx:      ctx,
		logger:   logger,
	}
}

// RegisterBatch registers the batch task on a six-field cron expression (seconds first).
func (s *Scheduler) RegisterBatch(expr string) error {
	if _, err := s.Cron.AddFunc(expr, s.batchTask); err != nil {
		return fmt.Errorf("register batch task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("scheduler started", zap.Int("entries", len(s.Cron.Entries())))
}

// Stop stops the cron scheduler and waits for a running batch to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunNow executes the batch task immediately (for manual trigger / RUN_ON_START).
// It reports false when a batch is already running.
func (s *Scheduler) RunNow() bool {
	return s.runBatch()
}

func (s *Scheduler) batchTask() { s.runBatch() }

func (s *Scheduler) runBatch() bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("batch already running, skipping trigger")
		return false
	}
	defer s.running.Store(false)

	s.logger.Info("running batch task", zap.String("pattern", s.Pattern))
	batch, err := s.Runner.RunBatch(s.Ctx, s.Pattern)
	if err != nil {
		s.logger.Error("batch failed", zap.Error(err))
		s.trySend(fmt.Sprintf("❌ Batch failed: %v", err))
		return true
	}
	s.trySend(notifier.FormatBatch(batch))
	return true
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch command {
	case "/run":
		if s.running.Load() {
			return "A batch is already running."
		}
		go s.batchTask()
		return "Batch started."
	case "/status":
		last := s.Runner.Last()
		if last == nil {
			return "No batch has finished yet."
		}
		return notifier.FormatBatch(last)
	case "/last":
		runs, err := s.Recorder.LastRuns(5)
		if err != nil {
			s.logger.Error("load archived runs", zap.Error(err))
			return fmt.Sprintf("❌ Could not load runs: %v", err)
		}
		return notifier.FormatRuns(runs)
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.logger.Error("send notification", zap.Error(err))
	}
}
