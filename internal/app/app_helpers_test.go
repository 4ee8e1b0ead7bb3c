package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/guttosm/trip-planner/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig returns a configuration that runs entirely in memory.
func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{
			Port:       "8080",
			RateLimit:  100,
			RateWindow: time.Minute,
		},
		Cache: config.CacheConfig{
			Size: 100,
			TTL:  time.Minute,
		},
		Planner: config.PlannerConfig{
			MinLoadUtilization: 0.3,
			BaseDistanceKm:     50,
			LockTimeout:        time.Second,
		},
		Estimator: config.EstimatorConfig{
			BufferFraction: 0.1,
		},
		Events: config.EventsConfig{
			Enabled:    true,
			BufferSize: 10,
			Workers:    1,
		},
	}
}

func newTestApp(t *testing.T, cfg config.Config) *App {
	t.Helper()
	application, err := InitializeApp(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, application.Close(context.Background()))
	})
	return application
}

func serve(a *App, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	return w
}
