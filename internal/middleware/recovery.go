package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/trip-planner/internal/domain/dto"
	"github.com/guttosm/trip-planner/internal/i18n"
	"github.com/guttosm/trip-planner/internal/logger"
	"github.com/guttosm/trip-planner/internal/metrics"
)

// Recovery turns a handler panic into a 500 envelope. The panic value and
// stack are logged, never sent to the client. If the handler already started
// the response only the log line is written.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			route := c.FullPath()
			metrics.RecordAbort("panic", route)
			logger.FromContext(c.Request.Context(), "http").Error().
				Str("route", route).
				Str("method", c.Request.Method).
				Str("panic", fmt.Sprint(rec)).
				Bytes("stack", debug.Stack()).
				Msg("Handler panicked")

			if c.Writer.Written() {
				c.Abort()
				return
			}
			abortWithError(c, http.StatusInternalServerError, dto.ErrCodeInternal, i18n.ErrKeyInternalError)
		}()
		c.Next()
	}
}
