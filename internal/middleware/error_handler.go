package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/guttosm/trip-planner/internal/apperror"
	"github.com/guttosm/trip-planner/internal/circuitbreaker"
	"github.com/guttosm/trip-planner/internal/domain/dto"
	"github.com/guttosm/trip-planner/internal/i18n"
	"github.com/guttosm/trip-planner/internal/logger"
)

// ErrorHandler returns a middleware that renders errors attached with
// c.Error. Domain errors get their mapped status and details; anything
// else is logged and answered with 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		status, resp := ErrorResponseFor(c, err)

		log := logger.FromContext(c.Request.Context(), "http")
		event := log.Warn()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("error", err.Error()).
			Str("path", c.Request.URL.Path).
			Str("method", c.Request.Method).
			Msg("Request error")

		if !c.Writer.Written() {
			c.JSON(status, resp)
		}
	}
}

// ErrorResponseFor maps err to a status and a translated error envelope.
func ErrorResponseFor(c *gin.Context, err error) (int, dto.ErrorResponse) {
	locale := i18n.GetLocale(c)
	translator := i18n.GetTranslator()

	var fieldErrs validator.ValidationErrors
	var reqErr *dto.ValidationError
	switch {
	case errors.As(err, &fieldErrs):
		resp := dto.NewError(apperror.CodeValidation, translator.Translate(i18n.ErrKeyValidation, locale))
		resp.Details = make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			resp.Details[fieldName(fe)] = fieldRule(fe)
		}
		return http.StatusBadRequest, correlate(c, resp)
	case errors.As(err, &reqErr):
		resp := dto.NewError(apperror.CodeValidation, translator.Translate(i18n.ErrKeyValidation, locale))
		resp.Details = map[string]string{"field": reqErr.Field, "message": reqErr.Message}
		return http.StatusBadRequest, correlate(c, resp)
	case errors.Is(err, context.DeadlineExceeded):
		resp := dto.NewError(dto.ErrCodeTimeout, translator.Translate(i18n.ErrKeyTimeout, locale))
		return http.StatusGatewayTimeout, correlate(c, resp)
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		resp := dto.NewError(dto.ErrCodeUnavailable, translator.Translate(i18n.ErrKeyUnavailable, locale))
		return http.StatusServiceUnavailable, correlate(c, resp)
	}

	code := apperror.Code(err)
	details := apperror.Details(err)
	key := "error." + code
	if reason := details["reason"]; code == apperror.CodeConflict && reason != "" {
		if k := key + "." + reason; translator.HasKey(k) {
			key = k
		}
	}
	resp := dto.NewError(code, translator.Translate(key, locale))
	resp.Details = details
	if code == apperror.CodeValidation {
		var ve *apperror.ValidationError
		if errors.As(err, &ve) {
			if resp.Details == nil {
				resp.Details = map[string]string{}
			}
			resp.Details["message"] = ve.Message
		}
	}
	return apperror.HTTPStatus(err), correlate(c, resp)
}

func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}

func fieldRule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
