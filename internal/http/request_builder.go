package http

import (
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/trip-planner/internal/domain/dto"
	"github.com/guttosm/trip-planner/internal/i18n"
	"github.com/guttosm/trip-planner/internal/middleware"
)

// Success envelopes are pooled; gin serializes synchronously, so an envelope
// can be reused as soon as the handler has written it.
var successResponsePool = sync.Pool{
	New: func() any { return &dto.SuccessResponse{} },
}

func getSuccessResponse() *dto.SuccessResponse {
	return successResponsePool.Get().(*dto.SuccessResponse)
}

func putSuccessResponse(resp *dto.SuccessResponse) {
	*resp = dto.SuccessResponse{}
	successResponsePool.Put(resp)
}

// Validator is implemented by requests with cross-field rules.
type Validator interface {
	Validate() error
}

// BindJSON decodes and validates the request body into T: binding tags
// first, then Validate when T implements Validator.
func BindJSON[T any](c *gin.Context) (*T, error) {
	var req T
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, err
	}
	if v, ok := any(&req).(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	return &req, nil
}

// BindQuery decodes and validates the query string into T.
func BindQuery[T any](c *gin.Context) (*T, error) {
	var req T
	if err := c.ShouldBindQuery(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ResponseBuilder writes the success and error envelopes of the API.
type ResponseBuilder struct {
	c *gin.Context
}

// NewResponseBuilder creates a new response builder for the given context.
func NewResponseBuilder(c *gin.Context) *ResponseBuilder {
	return &ResponseBuilder{c: c}
}

// Success sends a successful response with the given data.
func (b *ResponseBuilder) Success(statusCode int, data interface{}) {
	resp := getSuccessResponse()
	resp.Data = data
	resp.RequestID = middleware.GetRequestID(b.c)
	resp.Timestamp = time.Now()

	b.c.JSON(statusCode, resp)
	putSuccessResponse(resp)
}

// SuccessOK sends a 200 OK response with the given data.
func (b *ResponseBuilder) SuccessOK(data interface{}) {
	b.Success(http.StatusOK, data)
}

// Created sends 201 with data and points Location at the new resource,
// which lives under the collection the request was posted to.
func (b *ResponseBuilder) Created(id string, data interface{}) {
	b.c.Header("Location", path.Join(b.c.Request.URL.Path, url.PathEscape(id)))
	b.Success(http.StatusCreated, data)
}

// List sends a page of items with its total.
func (b *ResponseBuilder) List(items interface{}, total int64, limit, skip int) {
	b.SuccessOK(dto.ListResponse{Items: items, Total: total, Limit: limit, Skip: skip})
}

// NoContent sends 204.
func (b *ResponseBuilder) NoContent() {
	b.c.Status(http.StatusNoContent)
}

// Error records err for the request log and aborts with the translated
// messageKey.
func (b *ResponseBuilder) Error(statusCode int, messageKey string, err error) {
	if err != nil {
		_ = b.c.Error(err)
	}
	middleware.AbortWithError(b.c, statusCode, messageKey)
}

// AppError renders a service error with the status, code, translated
// message and details of its type.
func (b *ResponseBuilder) AppError(err error) {
	status, resp := middleware.ErrorResponseFor(b.c, err)
	_ = b.c.Error(err)
	b.c.AbortWithStatusJSON(status, resp)
}

// BindError renders a request that failed to decode or validate. Field rule
// violations become a validation_error with per-field details; anything
// else is a malformed body.
func (b *ResponseBuilder) BindError(err error) {
	if isValidationFailure(err) {
		b.AppError(err)
		return
	}
	b.Error(http.StatusBadRequest, i18n.ErrKeyInvalidRequestBody, err)
}
