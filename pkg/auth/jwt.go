package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrExpired is returned for a JWT credential whose exp claim is in the past.
var ErrExpired = errors.New("credential expired")

// Credential describes what can be learned from a bearer token without its signing key.
type Credential struct {
	JWT       bool
	Subject   string
	ExpiresAt time.Time // zero when the token has no exp claim
}

// Inspect decodes token if it is a JWT. Opaque API keys yield Credential{JWT: false}.
// The signature is not verified; the issuing service does that.
func Inspect(token string) Credential {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Credential{}
	}
	c := Credential{JWT: true, Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		c.ExpiresAt = claims.ExpiresAt.Time
	}
	return c
}

// CheckExpiry fails for an expired JWT and reports whether it expires within warn of now.
func CheckExpiry(name, token string, now time.Time, warn time.Duration) (expiringSoon bool, err error) {
	c := Inspect(token)
	if !c.JWT || c.ExpiresAt.IsZero() {
		return false, nil
	}
	if !now.Before(c.ExpiresAt) {
		return false, fmt.Errorf("%s: %w at %s", name, ErrExpired, c.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return c.ExpiresAt.Sub(now) < warn, nil
}
