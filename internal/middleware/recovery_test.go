//go:build !integration

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/trip-planner/internal/domain/dto"
	"github.com/guttosm/trip-planner/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecovery tests panics become a 500 envelope and a log line.
func TestRecovery(t *testing.T) {
	tests := []struct {
		name     string
		locale   string
		handler  gin.HandlerFunc
		validate func(*testing.T, *httptest.ResponseRecorder, string)
	}{
		{
			name:    "string panic",
			handler: func(*gin.Context) { panic("pallet index out of range") },
			validate: func(t *testing.T, w *httptest.ResponseRecorder, logs string) {
				require.Equal(t, http.StatusInternalServerError, w.Code)
				var resp dto.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, dto.ErrCodeInternal, resp.Error)
				assert.Equal(t, "An unexpected error occurred", resp.Message)
				assert.Equal(t, w.Header().Get(RequestIDHeader), resp.RequestID)
				assert.NotContains(t, w.Body.String(), "pallet index")

				assert.Contains(t, logs, "pallet index out of range")
				assert.Contains(t, logs, `"route":"/trips/:id"`)
				assert.Contains(t, logs, `"stack"`)
			},
		},
		{
			name:   "runtime error is translated",
			locale: "nl",
			handler: func(*gin.Context) {
				var load map[string]int
				load["TRP-00001"]++
			},
			validate: func(t *testing.T, w *httptest.ResponseRecorder, logs string) {
				assert.Equal(t, http.StatusInternalServerError, w.Code)
				assert.Contains(t, w.Body.String(), "Er is een onverwachte fout opgetreden")
				assert.Contains(t, logs, "assignment to entry in nil map")
			},
		},
		{
			name: "panic after writing keeps the response",
			handler: func(c *gin.Context) {
				c.String(http.StatusOK, "partial")
				panic("late")
			},
			validate: func(t *testing.T, w *httptest.ResponseRecorder, logs string) {
				assert.Equal(t, http.StatusOK, w.Code)
				assert.Equal(t, "partial", w.Body.String())
				assert.Contains(t, logs, "late")
			},
		},
		{
			name:    "no panic",
			handler: func(c *gin.Context) { c.String(http.StatusOK, "ok") },
			validate: func(t *testing.T, w *httptest.ResponseRecorder, logs string) {
				assert.Equal(t, http.StatusOK, w.Code)
				assert.Empty(t, logs)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)

			router := gin.New()
			router.Use(RequestID(), Recovery())
			router.GET("/trips/:id", tt.handler)

			req := httptest.NewRequest(http.MethodGet, "/trips/t1", nil)
			if tt.locale != "" {
				req.Header.Set("Accept-Language", tt.locale)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			tt.validate(t, w, buf.String())
		})
	}
}

// TestRecovery_CountsPanics tests the abort counter.
func TestRecovery_CountsPanics(t *testing.T) {
	counter := metrics.HTTPAbortsTotal.WithLabelValues("panic", "/boom")
	before := testutil.ToFloat64(counter)

	router := gin.New()
	router.Use(Recovery())
	router.GET("/boom", func(*gin.Context) { panic("boom") })
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

// TestRecovery_AbortHandler tests http.ErrAbortHandler is passed on.
func TestRecovery_AbortHandler(t *testing.T) {
	router := gin.New()
	router.Use(Recovery())
	router.GET("/abort", func(*gin.Context) { panic(http.ErrAbortHandler) })

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/abort", nil))
	})
}
