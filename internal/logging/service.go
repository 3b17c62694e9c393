package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"spillwatch-worker/internal/config"
)

func NewServiceLogger(cfg *config.Config, service string) zerolog.Logger {
	return log.With().Str("worker_id", cfg.WorkerID).Str("service", service).Logger()
}

func WithOperation(base zerolog.Logger, operationID string) zerolog.Logger {
	return base.With().Str("operation_id", operationID).Logger()
}
