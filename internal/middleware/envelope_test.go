//go:build !integration

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/trip-planner/internal/domain/dto"
	"github.com/guttosm/trip-planner/internal/i18n"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

// TestErrorEnvelope tests translation and correlation of error bodies.
func TestErrorEnvelope(t *testing.T) {
	traced := trace.ContextWithSpanContext(httptest.NewRequest(http.MethodGet, "/", nil).Context(),
		trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: trace.TraceID{0xab, 1},
			SpanID:  trace.SpanID{1},
		}))

	tests := []struct {
		name      string
		locale    string
		traced    bool
		wantMsg   string
		wantTrace string
	}{
		{name: "untraced english", wantMsg: "Truck is not active"},
		{name: "traced portuguese", locale: "pt", traced: true, wantMsg: "Caminhão não está ativo", wantTrace: "ab010000000000000000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.traced {
				c.Request = c.Request.WithContext(traced)
			}
			if tt.locale != "" {
				c.Request.Header.Set(i18n.AcceptLanguageHeader, tt.locale)
			}
			c.Set(contextRequestID, "req-3")

			resp := errorEnvelope(c, dto.ErrCodeConflict, i18n.ErrKeyTruckInactive)

			assert.Equal(t, dto.ErrCodeConflict, resp.Error)
			assert.Equal(t, tt.wantMsg, resp.Message)
			assert.Equal(t, "req-3", resp.RequestID)
			assert.Equal(t, tt.wantTrace, resp.TraceID)
		})
	}
}
