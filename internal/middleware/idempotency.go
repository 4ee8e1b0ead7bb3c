package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/trip-planner/internal/domain/dto"
	"github.com/guttosm/trip-planner/internal/i18n"
)

const (
	// IdempotencyKeyHeader names the client supplied retry key.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotencyKeyTTL is how long a completed response is replayed.
	IdempotencyKeyTTL = 5 * time.Minute
	// IdempotencyReplayedHeader marks a response served from the store.
	IdempotencyReplayedHeader = "X-Idempotency-Replayed"

	maxIdempotencyKeyLength = 255
	anonymousCaller         = "anonymous"
)

// IdempotencyConfig holds configuration for the idempotency middleware.
type IdempotencyConfig struct {
	Store   *idempotencyStore
	Enabled bool
}

// DefaultIdempotencyConfig returns an enabled configuration with default
// capacity and TTL.
func DefaultIdempotencyConfig() IdempotencyConfig {
	return NewIdempotencyConfig(defaultIdempotencyCapacity, IdempotencyKeyTTL)
}

// NewIdempotencyConfig returns an enabled configuration holding at most
// capacity responses for ttl each.
func NewIdempotencyConfig(capacity int, ttl time.Duration) IdempotencyConfig {
	return IdempotencyConfig{Store: newIdempotencyStore(capacity, ttl), Enabled: true}
}

// Idempotency makes mutating requests carrying an Idempotency-Key safe to
// retry. Keys are scoped to the authenticated caller, the method and the path.
//
//   - a retry with the same payload replays the first 2xx response
//   - a retry with another payload is rejected with 422
//   - a retry while the first request still runs is rejected with 409
//
// Failed responses are not stored, so the client may retry them.
func Idempotency(cfg IdempotencyConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.Store == nil {
		return func(c *gin.Context) { c.Next() }
	}
	store := cfg.Store

	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" || !mutating(c.Request.Method) {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			abortIdempotency(c, http.StatusBadRequest, dto.ErrCodeInvalidRequest, i18n.ErrKeyInvalidRequest, "idempotency_key_too_long")
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			abortIdempotency(c, http.StatusBadRequest, dto.ErrCodeInvalidRequest, i18n.ErrKeyInvalidRequestBody, "unreadable_body")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		slot := slotKey(caller(c), c.Request.Method, c.Request.URL.Path, key)
		fingerprint := digest(body)

		if stored, ok := store.get(slot); ok {
			if stored.fingerprint != fingerprint {
				abortIdempotency(c, http.StatusUnprocessableEntity, dto.ErrCodeUnprocessable, i18n.ErrKeyValidation, "idempotency_key_reused")
				return
			}
			replay(c, stored)
			return
		}

		if !store.begin(slot) {
			abortIdempotency(c, http.StatusConflict, dto.ErrCodeConflict, i18n.ErrKeyConflict, "idempotency_key_in_flight")
			return
		}
		defer store.end(slot)

		rec := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		if status := rec.Status(); status >= 200 && status < 300 {
			store.put(slot, &storedResponse{
				fingerprint: fingerprint,
				status:      status,
				header:      replayableHeader(rec.Header()),
				body:        rec.body.Bytes(),
			})
		}
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func caller(c *gin.Context) string {
	if id := c.GetString(ContextUserID); id != "" {
		return id
	}
	return anonymousCaller
}

func slotKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		_, _ = io.WriteString(h, p)
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func digest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// replayableHeader keeps the response headers that describe the payload.
// Per-request headers are set again by the middleware chain on replay.
func replayableHeader(h http.Header) http.Header {
	out := make(http.Header)
	for _, name := range []string{"Content-Type", "Location", "Content-Language"} {
		if v := h.Values(name); len(v) > 0 {
			out[name] = append([]string(nil), v...)
		}
	}
	return out
}

func replay(c *gin.Context, stored *storedResponse) {
	for name, values := range stored.header {
		for _, v := range values {
			c.Writer.Header().Add(name, v)
		}
	}
	c.Header(IdempotencyReplayedHeader, "true")
	c.Status(stored.status)
	_, _ = c.Writer.Write(stored.body)
	c.Abort()
}

func abortIdempotency(c *gin.Context, status int, code, messageKey, reason string) {
	c.AbortWithStatusJSON(status, errorEnvelope(c, code, messageKey).WithDetail("reason", reason))
}

// recordingWriter copies the response body while it is written.
type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
