// Package watch runs the poller on a cron schedule.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// PollFunc runs one poll. Errors are logged by the scheduler.
type PollFunc func(ctx context.Context) error

// Scheduler fires a PollFunc on a cron expression. Overlapping ticks are
// skipped and a panic in one tick does not stop the schedule.
type Scheduler struct {
	expr string
	poll PollFunc
	cron *cron.Cron

	mu      sync.Mutex
	ctx     context.Context
	entry   cron.EntryID
	lastRun time.Time
	lastErr error
	runs    int
}

// New validates expr and returns a stopped Scheduler.
func New(expr string, poll PollFunc) (*Scheduler, error) {
	if _, err := cron.ParseStandard(expr); err != nil {
		return nil, fmt.Errorf("watch: invalid cron expression %q: %w", expr, err)
	}
	logger := slogLogger{}
	return &Scheduler{
		expr: expr,
		poll: poll,
		cron: cron.New(cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		), cron.WithLogger(logger)),
	}, nil
}

// Start registers the schedule and starts the cron runner. ctx is passed to
// every tick; cancel it and call Stop to shut down.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	id, err := s.cron.AddFunc(s.expr, func() { s.tick() })
	if err != nil {
		return fmt.Errorf("watch: register %q: %w", s.expr, err)
	}
	s.mu.Lock()
	s.entry = id
	s.mu.Unlock()

	s.cron.Start()
	slog.Info("watch scheduler started", "schedule", s.expr, "next", s.Next())
	return nil
}

// RunNow fires one poll immediately on the caller's goroutine.
func (s *Scheduler) RunNow(ctx context.Context) error {
	return s.run(ctx)
}

// Stop halts the runner and waits for a running tick to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("watch scheduler stopped", "runs", s.Runs())
}

// Next returns when the schedule fires next, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	id := s.entry
	s.mu.Unlock()
	if id == 0 {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// Runs returns how many polls have completed.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// LastError returns the error of the most recent poll.
func (s *Scheduler) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	_ = s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) error {
	start := time.Now()
	err := s.poll(ctx)

	s.mu.Lock()
	s.lastRun = start
	s.lastErr = err
	s.runs++
	s.mu.Unlock()

	if err != nil {
		slog.Warn("watch: poll failed", "schedule", s.expr, "duration", time.Since(start), "error", err)
	} else {
		slog.Debug("watch: poll finished", "schedule", s.expr, "duration", time.Since(start))
	}
	return err
}

// slogLogger routes cron's internal logging through slog.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
