//go:build !integration

package app

import (
	"context"
	"testing"
	"time"

	"github.com/guttosm/trip-planner/config"
	"github.com/guttosm/trip-planner/internal/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInitializeRouter tests handler wiring and router configuration mapping.
func TestInitializeRouter(t *testing.T) {
	tests := []struct {
		name     string
		cfg      func() config.Config
		db       func() *DatabaseComponents
		validate func(*testing.T, *RouterComponents)
	}{
		{
			name: "maps server settings",
			cfg:  testConfig,
			validate: func(t *testing.T, components *RouterComponents) {
				assert.Len(t, components.Handlers.Groups(), 6)
				assert.NotNil(t, components.HealthHandler)
				assert.False(t, components.Config.EnableAuth)
				assert.True(t, components.Config.EnableIdempotency)
				assert.Equal(t, 100, components.Config.RateLimit)
				assert.Equal(t, time.Minute, components.Config.RateWindow)
			},
		},
		{
			name: "maps auth settings",
			cfg: func() config.Config {
				cfg := testConfig()
				cfg.Auth = config.AuthConfig{
					Enabled:      true,
					APIKeys:      map[string]bool{"test-key": true},
					JWTSecretKey: "secret",
					JWTIssuer:    "idp",
					WriteRoles:   []string{"dispatcher"},
				}
				return cfg
			},
			validate: func(t *testing.T, components *RouterComponents) {
				assert.True(t, components.Config.EnableAuth)
				assert.Equal(t, map[string]bool{"test-key": true}, components.Config.APIKeys)
				assert.Equal(t, []byte("secret"), components.Config.JWT.Secret)
				assert.Equal(t, "idp", components.Config.JWT.Issuer)
				assert.Equal(t, []string{"dispatcher"}, components.Config.WriteRoles)
			},
		},
		{
			name: "zero limits keep router defaults",
			cfg: func() config.Config {
				cfg := testConfig()
				cfg.Server.RateLimit = 0
				cfg.Server.RateWindow = 0
				cfg.Server.RequestTimeout = 0
				return cfg
			},
			validate: func(t *testing.T, components *RouterComponents) {
				assert.Equal(t, 100, components.Config.RateLimit)
				assert.Equal(t, time.Minute, components.Config.RateWindow)
				assert.Positive(t, components.Config.RequestTimeout)
			},
		},
		{
			name: "registers repository breakers",
			cfg:  testConfig,
			db: func() *DatabaseComponents {
				db := InitializeDatabase(config.DatabaseConfig{})
				db.TruckCircuitBreaker = circuitbreaker.New(circuitbreaker.DefaultConfig())
				return db
			},
			validate: func(t *testing.T, components *RouterComponents) {
				names := components.HealthHandler.CheckNames()
				assert.Contains(t, names, "mongodb_trucks_circuit")
				assert.Contains(t, names, "estimator_profiles_circuit")
				assert.NotContains(t, names, "mongodb", "no database ping without mongo")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg()
			db := InitializeDatabase(cfg.Database)
			if tt.db != nil {
				db = tt.db()
			}
			services, err := InitializeServices(cfg, db)
			require.NoError(t, err)
			t.Cleanup(func() { services.Close(context.Background()) })

			tt.validate(t, InitializeRouter(services, db, cfg))
		})
	}
}
