package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/guttosm/trip-planner/internal/domain/dto"
	"github.com/guttosm/trip-planner/internal/i18n"
	"go.opentelemetry.io/otel/trace"
)

// errorEnvelope builds the error body for c with the message translated to
// the caller's locale.
func errorEnvelope(c *gin.Context, code, messageKey string) dto.ErrorResponse {
	message := i18n.GetTranslator().Translate(messageKey, i18n.GetLocale(c))
	return correlate(c, dto.NewError(code, message))
}

// correlate stamps resp with the request id and, when the request is traced,
// the trace id.
func correlate(c *gin.Context, resp dto.ErrorResponse) dto.ErrorResponse {
	resp = resp.WithRequestID(GetRequestID(c))
	if c.Request != nil {
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
			resp = resp.WithTraceID(sc.TraceID().String())
		}
	}
	return resp
}

func abortWithError(c *gin.Context, status int, code, messageKey string) {
	c.AbortWithStatusJSON(status, errorEnvelope(c, code, messageKey))
}

// AbortWithError ends the request with status and the translated message
// under the error code conventional for status.
func AbortWithError(c *gin.Context, status int, messageKey string) {
	abortWithError(c, status, dto.ErrCodeFromStatus(status), messageKey)
}
