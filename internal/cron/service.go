package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/farmlabor-backend/pkg/logger"
	"github.com/angelmondragon/farmlabor-backend/pkg/metrics"
)

const defaultInterval = time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	// JobTimeout bounds a single job run. Defaults to Interval.
	JobTimeout time.Duration
	Clock      func() time.Time
}

// Service runs the registered jobs once per interval on whichever replica holds
// the lock. Jobs implementing Periodic wait out their own interval between runs.
type Service struct {
	logg       *logger.Logger
	jobs       []Job
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
	now        func() time.Time
	lastRun    map[string]time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	s := &Service{
		logg:       params.Logger,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
		now:        params.Clock,
		lastRun:    map[string]time.Time{},
	}
	if params.Registry != nil {
		s.jobs = params.Registry.Jobs()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.jobTimeout <= 0 {
		s.jobTimeout = s.interval
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Run fires a cycle immediately and then on every tick until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"interval_ms": s.interval.Milliseconds(),
		"jobs":        len(s.jobs),
	})
	s.logg.Info(ctx, "cron.started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "cron.cycle_failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron.stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runCycle returns an error only when the lock itself misbehaves; job failures
// are logged and counted.
func (s *Service) runCycle(ctx context.Context) error {
	held, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !held {
		for _, job := range s.jobs {
			s.metrics.IncSkipped(job.Name())
		}
		s.logg.Debug(ctx, "cron lock held by another replica")
		return nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron lock release failed", err)
		}
	}()

	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return nil
		}
		if s.due(job) {
			s.runJob(ctx, job)
		}
	}
	return nil
}

func (s *Service) due(job Job) bool {
	periodic, ok := job.(Periodic)
	if !ok {
		return true
	}
	last, ran := s.lastRun[job.Name()]
	return !ran || !s.now().Before(last.Add(periodic.Every()))
}

func (s *Service) runJob(ctx context.Context, job Job) {
	name := job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})
	start := s.now()
	s.lastRun[name] = start

	outcome, err := s.invoke(jobCtx, job)
	took := s.now().Sub(start)
	s.metrics.ObserveRun(name, outcome, took)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return
	}
	s.logg.Debug(jobCtx, "job completed")
}

func (s *Service) invoke(ctx context.Context, job Job) (outcome string, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			outcome, err = metrics.CronPanicked, fmt.Errorf("job panicked: %v", r)
		}
	}()
	if err := job.Run(ctx); err != nil {
		return metrics.CronFailed, err
	}
	return metrics.CronSucceeded, nil
}
