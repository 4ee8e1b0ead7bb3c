package dto

import (
	"net/http"
	"time"

	"github.com/guttosm/trip-planner/internal/domain/model"
)

const (
	// ErrCodeInvalidRequest indicates an invalid request.
	ErrCodeInvalidRequest = "invalid_request"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"
	// ErrCodeUnauthorized indicates missing or invalid authentication.
	ErrCodeUnauthorized = "unauthorized"
	// ErrCodeForbidden indicates insufficient permissions.
	ErrCodeForbidden = "forbidden"
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound = "not_found"
	// ErrCodeRateLimit indicates rate limit exceeded.
	ErrCodeRateLimit = "rate_limit_exceeded"
	// ErrCodeConflict indicates a conflict with current state.
	ErrCodeConflict = "conflict"
	// ErrCodeTimeout indicates a request timeout.
	ErrCodeTimeout = "timeout"
	// ErrCodeUnprocessable indicates a well-formed request the domain rejects.
	ErrCodeUnprocessable = "unprocessable"
	// ErrCodeUnavailable indicates a dependency is failing fast.
	ErrCodeUnavailable = "service_unavailable"
)

// SuccessResponse wraps successful API responses with metadata.
// @Description Successful API response wrapper
type SuccessResponse struct {
	// Data holds the order, trip, truck, plan or list the endpoint returns.
	Data      interface{} `json:"data" swaggertype:"object"`
	RequestID string      `json:"request_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440000"`
	Timestamp time.Time   `json:"timestamp" example:"2026-01-28T10:00:00Z"`
} // @name SuccessResponse

// ErrorResponse represents a standardized error response for the API.
// @Description Standardized error response
type ErrorResponse struct {
	Error   string `json:"error" example:"conflict"`
	Message string `json:"message,omitempty" example:"Truck is already booked for an active trip"`
	// Details carries the ids and limits of the failed rule, e.g.
	// {"reason": "truck_busy", "truck_id": "...", "trip_id": "..."}.
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440000"`
	Timestamp time.Time         `json:"timestamp" example:"2026-01-28T10:00:00Z"`
	TraceID   string            `json:"trace_id,omitempty" example:"4bf92f3577b34da6a3ce929d0e0e4736"`
} // @name ErrorResponse

// NewError creates a new ErrorResponse with the given code and message.
func NewError(code, message string) ErrorResponse {
	return ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WithRequestID adds a request ID to the error response.
func (e ErrorResponse) WithRequestID(requestID string) ErrorResponse {
	e.RequestID = requestID
	return e
}

// WithTraceID links the error to the trace of the failed request.
func (e ErrorResponse) WithTraceID(traceID string) ErrorResponse {
	e.TraceID = traceID
	return e
}

// WithDetail returns a copy of e with key set in Details.
func (e ErrorResponse) WithDetail(key, value string) ErrorResponse {
	details := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	e.Details = details
	return e
}

// ListResponse is the data of a paged list endpoint.
// @Description Paged list
type ListResponse struct {
	Items interface{} `json:"items" swaggertype:"array,object"`
	Total int64       `json:"total"`
	Limit int         `json:"limit"`
	Skip  int         `json:"skip"`
} // @name ListResponse

// EstimateResponse is the data of GET /api/estimates.
// @Description Fuel and duration estimate of a trip
type EstimateResponse struct {
	Estimate    model.Estimate          `json:"estimate"`
	Distance    model.DistanceProfile   `json:"distance"`
	KnownRoute  bool                    `json:"known_route"`
	WorkingTime model.WorkingTime       `json:"working_time"`
	Efficiency  model.EfficiencyMetrics `json:"efficiency"`
} // @name EstimateResponse

// ErrCodeFromStatus returns the appropriate error code for an HTTP status.
func ErrCodeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return ErrCodeInvalidRequest
	case http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case http.StatusForbidden:
		return ErrCodeForbidden
	case http.StatusNotFound:
		return ErrCodeNotFound
	case http.StatusConflict:
		return ErrCodeConflict
	case http.StatusUnprocessableEntity:
		return ErrCodeUnprocessable
	case http.StatusTooManyRequests:
		return ErrCodeRateLimit
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return ErrCodeTimeout
	case http.StatusServiceUnavailable:
		return ErrCodeUnavailable
	default:
		return ErrCodeInternal
	}
}
