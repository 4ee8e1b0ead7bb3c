//go:build !integration

package app

import (
	"testing"

	"github.com/guttosm/trip-planner/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

// TestInitializeLogger tests the log configuration reaches the global logger.
func TestInitializeLogger(t *testing.T) {
	original, level := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = original
		zerolog.SetGlobalLevel(level)
	})

	tests := []struct {
		name string
		log  config.LogConfig
		want zerolog.Level
	}{
		{name: "default level", want: zerolog.InfoLevel},
		{name: "debug", log: config.LogConfig{Level: "debug"}, want: zerolog.DebugLevel},
		{name: "pretty warn", log: config.LogConfig{Level: "warn", Pretty: true}, want: zerolog.WarnLevel},
		{name: "unknown level", log: config.LogConfig{Level: "loud"}, want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Config{Log: tt.log}
			cfg.Tracing.ServiceName = "trip-planner"

			assert.NotPanics(t, func() { InitializeLogger(cfg) })
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
}
