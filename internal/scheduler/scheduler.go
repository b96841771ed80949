// Package scheduler runs periodic jobs on a time.Ticker.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one scheduled unit of work. now is the tick time.
type Job func(ctx context.Context, now time.Time)

// Scheduler runs a job immediately and then once per interval until stopped.
// A panicking job is logged and does not stop the loop.
type Scheduler struct {
	name     string
	interval time.Duration
	job      Job
	logger   *slog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// New builds a scheduler. name labels its log lines.
func New(name string, interval time.Duration, job Job, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		name:     name,
		interval: interval,
		job:      job,
		logger:   logger.With("component", "scheduler", "job", name),
	}
}

// Start begins ticking. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil || s.job == nil || s.interval <= 0 {
		return
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stop, s.done

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx, time.Now())
		for {
			select {
			case t := <-ticker.C:
				s.runOnce(ctx, t)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()
	s.logger.Info("scheduler started", "interval", s.interval)
}

// Stop halts the ticker goroutine and waits for a running job to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runOnce(ctx context.Context, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled job panicked", "panic", r)
		}
	}()
	s.job(ctx, now)
}
