package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/contexo-app/contexo/internal/common"
	"github.com/contexo-app/contexo/internal/services/ai"
)

// Service runs periodic background jobs. Currently the only job is the
// provider model catalog refresh, which keeps stale catalogs from
// surviving long sessions.
type Service struct {
	config       *common.SchedulerConfig
	orchestrator *ai.Orchestrator
	logger       arbor.ILogger
	cron         *cron.Cron
}

func NewService(config *common.SchedulerConfig, orchestrator *ai.Orchestrator, logger arbor.ILogger) *Service {
	return &Service{
		config:       config,
		orchestrator: orchestrator,
		logger:       logger,
		cron:         cron.New(cron.WithSeconds()),
	}
}

// Start registers the jobs and begins the scheduler. A disabled scheduler
// registers nothing.
func (s *Service) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info().Msg("Scheduler disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.config.CatalogSchedule, func() {
		s.logger.Debug().Msg("Running scheduled catalog refresh")
		if err := s.orchestrator.RefreshCatalog(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Scheduled catalog refresh failed")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("catalog_schedule", s.config.CatalogSchedule).
		Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}
