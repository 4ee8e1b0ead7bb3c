package app

import (
	"github.com/guttosm/trip-planner/config"
	"github.com/guttosm/trip-planner/internal/logger"
)

// InitializeLogger configures the global logger. Lines carry the tracing
// service name so logs and traces of one deployment share a label.
func InitializeLogger(cfg config.Config) {
	logger.Init(logger.Options{
		Level:   cfg.Log.Level,
		Pretty:  cfg.Log.Pretty,
		Service: cfg.Tracing.ServiceName,
	})
}
