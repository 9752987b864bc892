// Package tasks runs the background schedule: both analytics caches are
// pre-warmed periodically so the first maintainer request after a quiet
// period does not pay for a full log scan.
package tasks

import (
	"context"

	"github.com/dariaos/ota-backend/internal/analytics"
	"github.com/dariaos/ota-backend/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Scheduler struct {
	conf      *config.Config
	logger    *zap.Logger
	downloads *analytics.DownloadStats
	adoption  *analytics.AdoptionReport

	cron *cron.Cron
}

func NewScheduler(
	conf *config.Config,
	logger *zap.Logger,
	downloads *analytics.DownloadStats,
	adoption *analytics.AdoptionReport,
) *Scheduler {
	return &Scheduler{
		conf:      conf,
		logger:    logger,
		downloads: downloads,
		adoption:  adoption,
		cron:      cron.New(),
	}
}

func (s *Scheduler) Start() error {
	spec := s.conf.Tasks.AnalyticsPrewarmCron
	if spec == "" {
		s.logger.Info("Analytics pre-warm schedule disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(spec, s.prewarm); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("Analytics pre-warm scheduled",
		zap.String("cron", spec),
	)
	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) prewarm() {
	ctx := context.Background()
	if _, err := s.downloads.Ensure(ctx); err != nil {
		s.logger.Warn("Download stats pre-warm failed",
			zap.Error(err),
		)
	}
	if _, err := s.adoption.Ensure(ctx); err != nil {
		s.logger.Warn("Adoption report pre-warm failed",
			zap.Error(err),
		)
	}
}
