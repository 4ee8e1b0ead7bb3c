package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/trip-planner/internal/domain/dto"
	"github.com/guttosm/trip-planner/internal/i18n"
)

// RequireRoles rejects token callers that carry none of roles. It must run
// after Authenticate. API key callers have no claims and pass;
// unauthenticated requests get 401. With no roles every caller passes.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(roles) == 0 {
			c.Next()
			return
		}
		if _, ok := c.Get(ContextUserID); !ok {
			abortUnauthorized(c, i18n.ErrKeyUnauthorized)
			return
		}

		raw, exists := c.Get(ContextUserClaims)
		if !exists {
			c.Next()
			return
		}
		claims, ok := raw.(*dto.Claims)
		if !ok || !claims.HasAnyRole(roles...) {
			abortWithError(c, http.StatusForbidden, dto.ErrCodeForbidden, i18n.ErrKeyForbidden)
			return
		}
		c.Next()
	}
}

// WritesRequireRoles applies RequireRoles to mutating methods only.
func WritesRequireRoles(roles ...string) gin.HandlerFunc {
	check := RequireRoles(roles...)
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
		default:
			check(c)
		}
	}
}
