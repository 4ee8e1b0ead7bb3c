//go:build ignore

// generate_keys prints secrets for a local trip-planner .env, or mints a
// development bearer token in place of the identity provider.
//
//	go run scripts/generate_keys.go secrets -api-keys 2
//	go run scripts/generate_keys.go token -secret "$JWT_SECRET_KEY" -sub alice -roles dispatcher
package main

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/guttosm/trip-planner/internal/domain/dto"
)

const usage = "usage: generate_keys.go secrets|token [flags]"

func main() {
	if len(os.Args) < 2 {
		fatal(usage)
	}

	var err error
	switch os.Args[1] {
	case "secrets":
		err = secrets(os.Args[2:])
	case "token":
		err = token(os.Args[2:])
	default:
		err = fmt.Errorf("unknown command %q\n%s", os.Args[1], usage)
	}
	if err != nil {
		fatal(err.Error())
	}
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func randomKey(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func secrets(args []string) error {
	fs := flag.NewFlagSet("secrets", flag.ExitOnError)
	apiKeys := fs.Int("api-keys", 1, "number of service API keys")
	writeRoles := fs.String("write-roles", "dispatcher", "roles allowed to change orders and trips")
	_ = fs.Parse(args)

	jwtSecret, err := randomKey(32)
	if err != nil {
		return fmt.Errorf("jwt secret: %w", err)
	}
	keys := make([]string, *apiKeys)
	for i := range keys {
		if keys[i], err = randomKey(24); err != nil {
			return fmt.Errorf("api key: %w", err)
		}
	}

	fmt.Printf(`# trip-planner credentials, keep out of version control
AUTH_ENABLED=true
AUTH_WRITE_ROLES=%s
# shared with the identity provider that signs bearer tokens
JWT_SECRET_KEY=%s
# service-to-service callers
API_KEYS=%s
`, *writeRoles, jwtSecret, strings.Join(keys, ","))
	return nil
}

func token(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	secret := fs.String("secret", os.Getenv("JWT_SECRET_KEY"), "JWT secret, defaults to $JWT_SECRET_KEY")
	subject := fs.String("sub", "dev", "token subject")
	name := fs.String("name", "", "display name")
	roles := fs.String("roles", "dispatcher", "comma separated roles")
	issuer := fs.String("iss", os.Getenv("JWT_ISSUER"), "issuer, must match JWT_ISSUER when the service checks it")
	ttl := fs.Duration("ttl", 12*time.Hour, "token lifetime")
	_ = fs.Parse(args)

	if *secret == "" {
		return fmt.Errorf("token: -secret or JWT_SECRET_KEY is required")
	}

	now := time.Now()
	claims := dto.Claims{
		Name:  *name,
		Roles: strings.Split(*roles, ","),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   *subject,
			Issuer:    *issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(*secret))
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Println(signed)
	return nil
}
