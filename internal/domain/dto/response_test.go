package dto

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestNewError tests the envelope builders.
func TestNewError(t *testing.T) {
	tests := []struct {
		name     string
		build    func() ErrorResponse
		validate func(*testing.T, ErrorResponse)
	}{
		{
			name:  "code, message and timestamp",
			build: func() ErrorResponse { return NewError(ErrCodeConflict, "Truck is busy") },
			validate: func(t *testing.T, e ErrorResponse) {
				assert.Equal(t, ErrCodeConflict, e.Error)
				assert.Equal(t, "Truck is busy", e.Message)
				assert.WithinDuration(t, time.Now(), e.Timestamp, time.Second)
				assert.Nil(t, e.Details)
			},
		},
		{
			name: "correlation ids",
			build: func() ErrorResponse {
				return NewError(ErrCodeTimeout, "").WithRequestID("req-1").WithTraceID("4bf92f35")
			},
			validate: func(t *testing.T, e ErrorResponse) {
				assert.Equal(t, "req-1", e.RequestID)
				assert.Equal(t, "4bf92f35", e.TraceID)
			},
		},
		{
			name: "details accumulate",
			build: func() ErrorResponse {
				return NewError(ErrCodeConflict, "").
					WithDetail("reason", "truck_busy").
					WithDetail("truck_id", "t-1")
			},
			validate: func(t *testing.T, e ErrorResponse) {
				assert.Equal(t, map[string]string{"reason": "truck_busy", "truck_id": "t-1"}, e.Details)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, tt.build())
		})
	}
}

// TestErrorResponse_WithDetailCopies tests a derived envelope leaves its source alone.
func TestErrorResponse_WithDetailCopies(t *testing.T) {
	base := NewError(ErrCodeConflict, "").WithDetail("reason", "pallet_in_use")
	derived := base.WithDetail("pallet_id", "P1")

	assert.Len(t, base.Details, 1)
	assert.Len(t, derived.Details, 2)
}

// TestErrCodeFromStatus tests status to code mapping.
func TestErrCodeFromStatus(t *testing.T) {
	tests := map[int]string{
		http.StatusBadRequest:          ErrCodeInvalidRequest,
		http.StatusUnauthorized:        ErrCodeUnauthorized,
		http.StatusForbidden:           ErrCodeForbidden,
		http.StatusNotFound:            ErrCodeNotFound,
		http.StatusRequestTimeout:      ErrCodeTimeout,
		http.StatusConflict:            ErrCodeConflict,
		http.StatusUnprocessableEntity: ErrCodeUnprocessable,
		http.StatusTooManyRequests:     ErrCodeRateLimit,
		http.StatusInternalServerError: ErrCodeInternal,
		http.StatusBadGateway:          ErrCodeInternal,
		http.StatusServiceUnavailable:  ErrCodeUnavailable,
		http.StatusGatewayTimeout:      ErrCodeTimeout,
	}

	for status, want := range tests {
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			assert.Equal(t, want, ErrCodeFromStatus(status))
		})
	}
}
