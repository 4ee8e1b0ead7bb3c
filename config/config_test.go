package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values", func(t *testing.T) {
		os.Clearenv()

		cfg := Load()

		assert.Equal(t, "8080", cfg.Server.Port)
		assert.Equal(t, 100, cfg.Server.RateLimit)
		assert.Equal(t, time.Minute, cfg.Server.RateWindow)
		assert.Equal(t, 1000, cfg.Cache.Size)
		assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
		assert.False(t, cfg.Auth.Enabled)
		assert.False(t, cfg.Database.Enabled)
		assert.Equal(t, 50, cfg.Database.MaxPoolSize)
		assert.Equal(t, 10*time.Second, cfg.Database.ConnectTimeout)
		assert.Equal(t, 0.3, cfg.Planner.MinLoadUtilization)
		assert.Equal(t, 50.0, cfg.Planner.BaseDistanceKm)
		assert.Equal(t, 250.0, cfg.Estimator.DefaultDistanceKm)
		assert.Equal(t, 4.0, cfg.Estimator.DefaultTimeH)
		assert.Equal(t, 25.0, cfg.Estimator.DefaultConsumption)
		assert.Equal(t, 0.10, cfg.Estimator.BufferFraction)
		assert.False(t, cfg.Estimator.RandomBuffer)
		assert.Equal(t, "@every 15m", cfg.Reconciler.Schedule)
		assert.Nil(t, cfg.Events.KafkaBrokers)
		assert.Equal(t, LogConfig{Level: "info"}, cfg.Log)
	})

	t.Run("loads values from environment", func(t *testing.T) {
		os.Clearenv()
		_ = os.Setenv("PORT", "9090")
		_ = os.Setenv("RATE_LIMIT", "50")
		_ = os.Setenv("RATE_WINDOW", "30s")
		_ = os.Setenv("CACHE_SIZE", "500")
		_ = os.Setenv("CACHE_TTL", "10m")
		_ = os.Setenv("AUTH_ENABLED", "true")
		_ = os.Setenv("API_KEYS", "key1,key2")
		_ = os.Setenv("PLANNER_MIN_LOAD_UTILIZATION", "0.5")
		_ = os.Setenv("ESTIMATOR_RANDOM_BUFFER", "true")
		_ = os.Setenv("ESTIMATOR_LOOKUP_TIMEOUT", "250ms")
		_ = os.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
		_ = os.Setenv("LOG_LEVEL", "debug")
		_ = os.Setenv("LOG_PRETTY", "true")
		_ = os.Setenv("MONGODB_MAX_POOL_SIZE", "8")
		defer os.Clearenv()

		cfg := Load()

		assert.Equal(t, "9090", cfg.Server.Port)
		assert.Equal(t, 50, cfg.Server.RateLimit)
		assert.Equal(t, 30*time.Second, cfg.Server.RateWindow)
		assert.Equal(t, 500, cfg.Cache.Size)
		assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
		assert.True(t, cfg.Auth.Enabled)
		assert.True(t, cfg.Auth.APIKeys["key1"])
		assert.True(t, cfg.Auth.APIKeys["key2"])
		assert.Equal(t, 0.5, cfg.Planner.MinLoadUtilization)
		assert.True(t, cfg.Estimator.RandomBuffer)
		assert.Equal(t, 250*time.Millisecond, cfg.Estimator.LookupTimeout)
		assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Events.KafkaBrokers)
		assert.Equal(t, LogConfig{Level: "debug", Pretty: true}, cfg.Log)
		assert.Equal(t, 8, cfg.Database.MaxPoolSize)
	})

	t.Run("handles invalid values gracefully", func(t *testing.T) {
		os.Clearenv()
		_ = os.Setenv("RATE_LIMIT", "invalid")
		_ = os.Setenv("AUTH_ENABLED", "invalid")
		_ = os.Setenv("RATE_WINDOW", "invalid")
		_ = os.Setenv("PLANNER_MIN_LOAD_UTILIZATION", "lots")
		defer os.Clearenv()

		cfg := Load()

		assert.Equal(t, 100, cfg.Server.RateLimit)
		assert.False(t, cfg.Auth.Enabled)
		assert.Equal(t, time.Minute, cfg.Server.RateWindow)
		assert.Equal(t, 0.3, cfg.Planner.MinLoadUtilization)
	})

	t.Run("parses API keys with whitespace", func(t *testing.T) {
		os.Clearenv()
		_ = os.Setenv("API_KEYS", " key1 , key2 , key3 ")
		defer os.Clearenv()

		cfg := Load()

		assert.True(t, cfg.Auth.APIKeys["key1"])
		assert.True(t, cfg.Auth.APIKeys["key2"])
		assert.True(t, cfg.Auth.APIKeys["key3"])
	})

	t.Run("returns nil for empty API keys", func(t *testing.T) {
		os.Clearenv()

		cfg := Load()

		assert.Nil(t, cfg.Auth.APIKeys)
	})

	t.Run("appends CORS origins to local defaults", func(t *testing.T) {
		os.Clearenv()
		_ = os.Setenv("CORS_ORIGINS", "https://ops.example.com")
		defer os.Clearenv()

		cfg := Load()

		assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000", "https://ops.example.com"}, cfg.Server.CORSOrigins)
	})
}

func TestLoadWithDotEnv(t *testing.T) {
	t.Run("reads values from file", func(t *testing.T) {
		os.Clearenv()
		defer os.Clearenv()

		path := filepath.Join(t.TempDir(), ".env")
		assert.NoError(t, os.WriteFile(path, []byte("PORT=7070\nMONGODB_DATABASE=planner_test\n"), 0o600))

		cfg := LoadWithDotEnv(path)

		assert.Equal(t, "7070", cfg.Server.Port)
		assert.Equal(t, "planner_test", cfg.Database.DatabaseName)
	})

	t.Run("environment wins over file", func(t *testing.T) {
		os.Clearenv()
		defer os.Clearenv()
		_ = os.Setenv("PORT", "6060")

		path := filepath.Join(t.TempDir(), ".env")
		assert.NoError(t, os.WriteFile(path, []byte("PORT=7070\n"), 0o600))

		cfg := LoadWithDotEnv(path)

		assert.Equal(t, "6060", cfg.Server.Port)
	})

	t.Run("missing file falls back to environment", func(t *testing.T) {
		os.Clearenv()
		defer os.Clearenv()

		cfg := LoadWithDotEnv(filepath.Join(t.TempDir(), "absent.env"))

		assert.Equal(t, "8080", cfg.Server.Port)
	})
}
