package service

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/newsgate/newsgate/internal/config"
)

// MaintenanceService runs the nightly housekeeping: daily stats snapshot and
// pruning of old monitoring rows.
type MaintenanceService struct {
	cfg        *config.MaintenanceConfig
	monitoring *MonitoringService
	logger     *zap.Logger
	cron       *cron.Cron
}

func NewMaintenanceService(cfg *config.MaintenanceConfig, monitoring *MonitoringService, logger *zap.Logger) *MaintenanceService {
	return &MaintenanceService{
		cfg:        cfg,
		monitoring: monitoring,
		logger:     logger,
		cron:       cron.New(),
	}
}

func (s *MaintenanceService) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info("Maintenance service is disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.CronSpec, s.run); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Maintenance service started", zap.String("cron_spec", s.cfg.CronSpec))
	return nil
}

func (s *MaintenanceService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Maintenance service stopped")
}

func (s *MaintenanceService) run() {
	if err := s.monitoring.UpdateDailyStats(); err != nil {
		s.logger.Error("Failed to update daily stats", zap.Error(err))
	}
	if err := s.monitoring.CleanupOldData(s.cfg.KeepStatDays); err != nil {
		s.logger.Error("Failed to clean up old monitoring data", zap.Error(err))
	}
}
