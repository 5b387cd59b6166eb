package sweep

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/example/ride-share/internal/observability"
)

// Scheduler owns the periodic execution of both sweeps. Tick failures are
// logged and counted; they never stop the schedule. Tests drive the Service
// directly instead of going through cron.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler registers both sweeps with standard cron expressions,
// e.g. "*/5 * * * *" for reminders and "0 0 * * *" for expiry.
func NewScheduler(svc *Service, logger *slog.Logger, reminderSpec, expirySpec string) (*Scheduler, error) {
	c := cron.New()

	if _, err := c.AddFunc(reminderSpec, func() {
		if err := svc.RunReminderTick(context.Background()); err != nil {
			observability.SweepFailures.Inc()
			logger.Error("reminder sweep tick failed", "error", err)
		}
	}); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc(expirySpec, func() {
		if _, err := svc.RunExpiryTick(context.Background()); err != nil {
			observability.SweepFailures.Inc()
			logger.Error("expiry sweep tick failed", "error", err)
		}
	}); err != nil {
		return nil, err
	}

	return &Scheduler{cron: c, logger: logger}, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("sweep scheduler started")
	s.cron.Start()
}

// Stop halts scheduling and waits for any running tick to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("sweep scheduler stopped")
}
