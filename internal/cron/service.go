package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/tixmarket-backend/pkg/logger"
	"github.com/angelmondragon/tixmarket-backend/pkg/metrics"
)

const defaultInterval = time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service sweeps on a fixed cadence. A cycle only runs on the replica that
// wins the lock, and the next cycle is scheduled once the current one ends.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("cron: logger required")
	case params.Lock == nil:
		return nil, errors.New("cron: lock required")
	}
	svc := &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
	}
	if svc.registry == nil {
		svc.registry = NewRegistry()
	}
	if svc.interval <= 0 {
		svc.interval = defaultInterval
	}
	return svc, nil
}

// Run sweeps immediately and then every interval until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logg.Error(ctx, "cron.cycle_failed", err)
		}
		timer.Reset(s.interval)
	}
}

// RunOnce executes one cycle. Job failures are logged and counted but never
// abort the cycle; only a lock error or cancellation is returned.
func (s *Service) RunOnce(ctx context.Context) error {
	lease, err := s.lock.TryAcquire(ctx)
	if err != nil {
		return fmt.Errorf("cron: acquire lock: %w", err)
	}
	if lease == nil {
		s.logg.Debug(ctx, "cron.lock_busy")
		return nil
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron.lock_release_failed", err)
		}
	}()

	var failed int
	for _, job := range s.registry.Jobs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !s.runJob(ctx, job) {
			failed++
		}
	}
	if failed > 0 {
		s.logg.Warn(s.logg.WithField(ctx, "failed_jobs", failed), "cron.cycle_degraded")
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) bool {
	name := job.Name()
	ctx = s.logg.WithField(ctx, "job", name)

	began := time.Now()
	processed, err := job.Run(ctx)
	took := time.Since(began)
	s.metrics.ObserveRun(name, took, processed, err)

	ctx = s.logg.WithFields(ctx, map[string]any{
		"took_ms":   took.Milliseconds(),
		"processed": processed,
	})
	switch {
	case err != nil:
		s.logg.Error(ctx, "cron.job_failed", err)
		return false
	case processed > 0:
		s.logg.Info(ctx, "cron.job_done")
	default:
		s.logg.Debug(ctx, "cron.job_idle")
	}
	return true
}
