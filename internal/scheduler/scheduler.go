package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

type Task func(ctx context.Context) error

type Job struct {
	Name  string
	Every time.Duration
	Task  Task

	// Retries bounds how often a failed run is retried before waiting for
	// the next tick. Backoff doubles from MinBackoff up to MaxBackoff.
	Retries    int
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

func (j Job) withDefaults() Job {
	if j.Name == "" {
		j.Name = "job"
	}
	if j.Retries < 0 {
		j.Retries = 0
	}
	if j.MinBackoff <= 0 {
		j.MinBackoff = time.Second
	}
	if j.MaxBackoff < j.MinBackoff {
		j.MaxBackoff = 30 * time.Second
		if j.MaxBackoff < j.MinBackoff {
			j.MaxBackoff = j.MinBackoff
		}
	}
	return j
}

type Supervisor struct {
	log *slog.Logger
}

func New(logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{log: logger}
}

// Run executes job every job.Every until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context, job Job) error {
	job = job.withDefaults()
	if job.Every <= 0 {
		return fmt.Errorf("%s: interval must be > 0", job.Name)
	}
	if job.Task == nil {
		return fmt.Errorf("%s: task is required", job.Name)
	}

	ticker := time.NewTicker(job.Every)
	defer ticker.Stop()

	s.log.Info("job started", "job", job.Name, "every", job.Every.String())
	for {
		select {
		case <-ctx.Done():
			s.log.Info("job stopped", "job", job.Name)
			return nil
		case <-ticker.C:
			if err := s.RunOnce(ctx, job); err != nil && ctx.Err() == nil {
				s.log.Error("job gave up until next tick", "job", job.Name, "err", err)
			}
		}
	}
}

// RunOnce runs the task, retrying failures and recovered panics with backoff.
func (s *Supervisor) RunOnce(ctx context.Context, job Job) error {
	job = job.withDefaults()
	delay := job.MinBackoff
	var err error
	for attempt := 0; attempt <= job.Retries; attempt++ {
		started := time.Now()
		err = call(ctx, job.Task)
		if err == nil {
			s.log.Info("job complete", "job", job.Name, "attempt", attempt+1, "took", time.Since(started).String())
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Error("job failed",
			"job", job.Name,
			"attempt", attempt+1,
			"max_attempts", job.Retries+1,
			"err", err,
		)
		if attempt == job.Retries {
			break
		}
		if err := sleepWithContext(ctx, delay); err != nil {
			return err
		}
		if delay < job.MaxBackoff {
			delay *= 2
			if delay > job.MaxBackoff {
				delay = job.MaxBackoff
			}
		}
	}
	return err
}

func call(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return task(ctx)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
