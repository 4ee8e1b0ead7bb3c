package middleware

import (
	"crypto/subtle"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/trip-planner/internal/i18n"
)

const (
	// APIKeyHeader carries a service API key.
	APIKeyHeader = "X-API-Key"
	// APIKeyQuery is accepted for clients that cannot set headers, such as
	// the dispatch board export links.
	APIKeyQuery = "api_key"

	apiKeyCaller = "api-key"
)

// APIKeys is the set of accepted service keys.
type APIKeys map[string]bool

// match compares key against every configured key in constant time.
func (k APIKeys) match(key string) bool {
	found := 0
	for valid, enabled := range k {
		if enabled {
			found |= subtle.ConstantTimeCompare([]byte(valid), []byte(key))
		}
	}
	return found == 1
}

// Authenticate accepts either a known API key or a valid bearer token.
// An API key, when present, takes precedence. Callers authenticated by key
// carry no claims, so role checks treat them as service accounts.
//
// A request without credentials is told which kind the deployment accepts.
func Authenticate(keys APIKeys, jwtCfg JWTConfig) gin.HandlerFunc {
	missing := missingCredentialsKey(len(keys) > 0, len(jwtCfg.Secret) > 0)

	return func(c *gin.Context) {
		if key := apiKeyFrom(c); key != "" {
			if !keys.match(key) {
				abortUnauthorized(c, i18n.ErrKeyInvalidAPIKey)
				return
			}
			c.Set(ContextUserID, apiKeyCaller)
			c.Next()
			return
		}

		claims, err := verifyBearer(c, jwtCfg)
		if err != nil {
			msg := i18n.ErrKeyInvalidToken
			if errors.Is(err, errTokenRequired) {
				msg = missing
			}
			abortUnauthorized(c, msg)
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

func missingCredentialsKey(hasKeys, hasJWT bool) string {
	switch {
	case hasKeys && !hasJWT:
		return i18n.ErrKeyAPIKeyRequired
	case hasJWT && !hasKeys:
		return i18n.ErrKeyTokenRequired
	default:
		return i18n.ErrKeyUnauthorized
	}
}

func apiKeyFrom(c *gin.Context) string {
	if key := c.GetHeader(APIKeyHeader); key != "" {
		return key
	}
	return c.Query(APIKeyQuery)
}
