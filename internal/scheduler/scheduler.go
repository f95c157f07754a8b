package scheduler

import (
	"context"
	"time"

	"tripscore/internal/services"
	"tripscore/pkg/logger"
)

// Scheduler periodically runs a full popularity reconciliation as a
// backstop for missed webhook events. It is the only retry mechanism in
// the system: an event that never fires is repaired within one interval.
type Scheduler struct {
	popularity services.PopularityService
	logger     *logger.Logger
	interval   time.Duration
	alertRatio float64
}

func New(popularity services.PopularityService, log *logger.Logger, interval time.Duration, alertRatio float64) *Scheduler {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if alertRatio <= 0 {
		alertRatio = 0.1
	}

	return &Scheduler{
		popularity: popularity,
		logger:     log,
		interval:   interval,
		alertRatio: alertRatio,
	}
}

// Run blocks until ctx is cancelled, reconciling once per interval.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Infof("Popularity reconciliation scheduled every %s", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Popularity scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single reconciliation pass and logs the outcome.
// Failures never escape: the next tick is the retry.
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()
	s.logger.Info("Starting popularity reconciliation run")

	result, err := s.popularity.ReconcileAll(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("duration_ms", time.Since(start).Milliseconds()).
			Error("Popularity reconciliation run failed")
		return
	}

	s.logger.LogReconcileRun(result.TotalTrips, result.SuccessCount, result.FailedCount, time.Since(start))

	if float64(result.FailedCount) > float64(result.SuccessCount)*s.alertRatio {
		s.logger.WithFields(map[string]interface{}{
			"failed_count":  result.FailedCount,
			"success_count": result.SuccessCount,
		}).Warn("High failure rate in popularity reconciliation")
	}
}
