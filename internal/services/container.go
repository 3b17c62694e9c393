package services

import (
	"context"
	"fmt"

	"spillwatch-worker/internal/config"
	"spillwatch-worker/internal/services/activitylog"
	"spillwatch-worker/internal/services/alerts"
	"spillwatch-worker/internal/services/detector"
	"spillwatch-worker/internal/services/messaging"
	"spillwatch-worker/internal/services/pipeline"
)

// ServiceContainer holds all services
type ServiceContainer struct {
	Config      *config.Config
	Detector    *detector.Service
	Pipeline    *pipeline.Service
	Alerts      *alerts.Service
	ActivityLog *activitylog.Service
	Messaging   *messaging.Service
}

// NewServiceContainer creates a new service container
func NewServiceContainer(cfg *config.Config) (*ServiceContainer, error) {
	detectorSvc, err := detector.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize detector: %w", err)
	}

	messagingSvc, err := messaging.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize messaging: %w", err)
	}

	activityLog, err := activitylog.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize activity log: %w", err)
	}

	alertSvc := alerts.NewService(alerts.DefaultThresholds, messagingSvc, cfg.AlertsSubject)

	pipelineSvc := pipeline.NewService(cfg, detectorSvc)

	return &ServiceContainer{
		Config:      cfg,
		Detector:    detectorSvc,
		Pipeline:    pipelineSvc,
		Alerts:      alertSvc,
		ActivityLog: activityLog,
		Messaging:   messagingSvc,
	}, nil
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	if sc.Pipeline != nil {
		sc.Pipeline.Shutdown()
	}

	if sc.Messaging != nil {
		sc.Messaging.Shutdown(ctx)
	}

	if sc.Detector != nil {
		sc.Detector.Close()
	}

	return nil
}
