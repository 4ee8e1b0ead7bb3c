//go:build !integration

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/trip-planner/internal/i18n"
	"github.com/stretchr/testify/assert"
)

// TestAPIKeys_Match tests key lookup.
func TestAPIKeys_Match(t *testing.T) {
	keys := APIKeys{"dispatch-board": true, "reporting": true, "retired": false}

	tests := []struct {
		key  string
		want bool
	}{
		{key: "dispatch-board", want: true},
		{key: "reporting", want: true},
		{key: "retired", want: false},
		{key: "dispatch", want: false},
		{key: "dispatch-board ", want: false},
		{key: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, keys.match(tt.key))
		})
	}
	assert.False(t, APIKeys(nil).match("dispatch-board"))
}

// TestAuthenticate tests API key and bearer token acceptance.
func TestAuthenticate(t *testing.T) {
	cfg := JWTConfig{Secret: []byte("test-secret")}
	keys := APIKeys{"svc-key": true}

	tests := []struct {
		name         string
		keys         APIKeys
		jwt          JWTConfig
		setup        func(*http.Request)
		wantStatus   int
		wantUser     string
		wantResponse string
	}{
		{
			name:       "api key header",
			keys:       keys,
			jwt:        cfg,
			setup:      func(req *http.Request) { req.Header.Set(APIKeyHeader, "svc-key") },
			wantStatus: http.StatusOK,
			wantUser:   apiKeyCaller,
		},
		{
			name:       "api key query parameter",
			keys:       keys,
			jwt:        cfg,
			setup:      func(req *http.Request) { req.URL.RawQuery = APIKeyQuery + "=svc-key" },
			wantStatus: http.StatusOK,
			wantUser:   apiKeyCaller,
		},
		{
			name: "api key wins over a bad token",
			keys: keys,
			jwt:  cfg,
			setup: func(req *http.Request) {
				req.Header.Set(APIKeyHeader, "svc-key")
				req.Header.Set("Authorization", "Bearer not-a-token")
			},
			wantStatus: http.StatusOK,
			wantUser:   apiKeyCaller,
		},
		{
			name:         "unknown api key",
			keys:         keys,
			jwt:          cfg,
			setup:        func(req *http.Request) { req.Header.Set(APIKeyHeader, "nope") },
			wantStatus:   http.StatusUnauthorized,
			wantResponse: "Invalid API key",
		},
		{
			name: "bearer token",
			keys: keys,
			jwt:  cfg,
			setup: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer "+signToken(t, cfg.Secret, testClaims("dispatcher-7", time.Hour)))
			},
			wantStatus: http.StatusOK,
			wantUser:   "dispatcher-7",
		},
		{
			name:         "no credentials with keys and tokens",
			keys:         keys,
			jwt:          cfg,
			setup:        func(*http.Request) {},
			wantStatus:   http.StatusUnauthorized,
			wantResponse: "Unauthorized",
		},
		{
			name:         "no credentials with keys only",
			keys:         keys,
			setup:        func(*http.Request) {},
			wantStatus:   http.StatusUnauthorized,
			wantResponse: "API key is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var user string
			router := gin.New()
			router.Use(Authenticate(tt.keys, tt.jwt))
			router.GET("/api/trips", func(c *gin.Context) {
				user = c.GetString(ContextUserID)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/trips", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantUser, user)
			if tt.wantResponse != "" {
				assert.Contains(t, w.Body.String(), tt.wantResponse)
			}
		})
	}
}

// TestMissingCredentialsKey tests the message for requests without credentials.
func TestMissingCredentialsKey(t *testing.T) {
	assert.Equal(t, i18n.ErrKeyAPIKeyRequired, missingCredentialsKey(true, false))
	assert.Equal(t, i18n.ErrKeyTokenRequired, missingCredentialsKey(false, true))
	assert.Equal(t, i18n.ErrKeyUnauthorized, missingCredentialsKey(true, true))
	assert.Equal(t, i18n.ErrKeyUnauthorized, missingCredentialsKey(false, false))
}
