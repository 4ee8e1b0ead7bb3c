package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/trip-planner/internal/domain/dto"
	"github.com/guttosm/trip-planner/internal/i18n"
	"github.com/guttosm/trip-planner/internal/logger"
	"github.com/guttosm/trip-planner/internal/metrics"
)

// TimeoutConfig holds configuration for the timeout middleware.
type TimeoutConfig struct {
	// Timeout bounds the request context. Zero or less disables it.
	Timeout time.Duration
}

// DefaultTimeoutConfig returns the default request timeout.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{Timeout: 60 * time.Second}
}

// Timeout bounds the request context. Handlers run on the request goroutine
// and services observe the deadline through the context, so a slow planning
// run or lock wait stops at the deadline. If nothing was written by then the
// client gets 504.
func Timeout(cfg TimeoutConfig) gin.HandlerFunc {
	if cfg.Timeout <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.Timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return
		}
		route := c.FullPath()
		metrics.RecordAbort("timeout", route)
		logger.FromContext(ctx, "http").Warn().
			Str("route", route).
			Dur("timeout", cfg.Timeout).
			Bool("written", c.Writer.Written()).
			Msg("Request deadline exceeded")

		if !c.Writer.Written() {
			abortWithError(c, http.StatusGatewayTimeout, dto.ErrCodeTimeout, i18n.ErrKeyTimeout)
		}
	}
}

// TimeoutWithDuration is Timeout with only the duration set.
func TimeoutWithDuration(timeout time.Duration) gin.HandlerFunc {
	return Timeout(TimeoutConfig{Timeout: timeout})
}
