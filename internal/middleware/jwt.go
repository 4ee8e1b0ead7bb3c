package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/guttosm/trip-planner/internal/domain/dto"
)

const (
	// ContextUserID holds the token subject.
	ContextUserID = "user_id"
	// ContextUserClaims holds the verified *dto.Claims.
	ContextUserClaims = "user_claims"
)

var errTokenRequired = errors.New("bearer token required")

// JWTConfig configures bearer token verification. Tokens are signed with
// HS256 by the identity provider; Issuer is checked when set.
type JWTConfig struct {
	Secret []byte
	Issuer string
}

func verifyBearer(c *gin.Context, cfg JWTConfig) (*dto.Claims, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, errTokenRequired
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, errors.New("authorization scheme must be Bearer")
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return nil, errTokenRequired
	}
	return ParseToken(raw, cfg)
}

// ParseToken verifies the signature, expiry and issuer of raw.
func ParseToken(raw string, cfg JWTConfig) (*dto.Claims, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt secret not configured")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	claims := &dto.Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return cfg.Secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func setClaims(c *gin.Context, claims *dto.Claims) {
	c.Set(ContextUserID, claims.Subject)
	c.Set(ContextUserClaims, claims)
}

func abortUnauthorized(c *gin.Context, key string) {
	abortWithError(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, key)
}
