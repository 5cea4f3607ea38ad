// Package introspect decodes the claims of an ENVRI-ID access token for
// display.
//
// Real introspection happens server side: the data service hands the
// presented token to the AERIS SSO, which validates it and checks its
// entitlements. This package only peels the local JWS payload open so the
// operator can see what the SSO will be looking at. Signatures are NOT
// verified here, so the decoded claims prove nothing about the token's
// validity.
package introspect

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v3/jws"
)

// Claims carries the subset of ENVRI-ID token claims worth showing. The
// entitlements list holds the AAI group memberships the data service checks
// during introspection.
type Claims struct {
	Subject      string
	Issuer       string
	Email        string
	Username     string
	Scope        string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	Entitlements []string
}

// Expired reports whether the token was already past its expiry at now.
// Always false for tokens without an exp claim.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Decode parses a compact-serialized JWS access token and returns its
// claims. The signature is not verified. Opaque (non-JWS) tokens fail with
// a parse error; they are still perfectly valid credentials, there is just
// nothing local to decode.
func Decode(token string) (*Claims, error) {
	msg, err := jws.Parse([]byte(token))
	if err != nil {
		return nil, fmt.Errorf("token is not a JWS: %w", err)
	}

	var wire struct {
		Subject           string   `json:"sub"`
		Issuer            string   `json:"iss"`
		Email             string   `json:"email"`
		PreferredUsername string   `json:"preferred_username"`
		Scope             string   `json:"scope"`
		IssuedAt          int64    `json:"iat"`
		ExpiresAt         int64    `json:"exp"`
		Entitlements      []string `json:"eduperson_entitlement"`
	}
	if err := json.Unmarshal(msg.Payload(), &wire); err != nil {
		return nil, fmt.Errorf("decoding token payload: %w", err)
	}

	claims := &Claims{
		Subject:      wire.Subject,
		Issuer:       wire.Issuer,
		Email:        wire.Email,
		Username:     wire.PreferredUsername,
		Scope:        wire.Scope,
		Entitlements: wire.Entitlements,
	}
	if wire.IssuedAt > 0 {
		claims.IssuedAt = time.Unix(wire.IssuedAt, 0)
	}
	if wire.ExpiresAt > 0 {
		claims.ExpiresAt = time.Unix(wire.ExpiresAt, 0)
	}
	return claims, nil
}

// Fingerprint returns a short digest identifying a token without exposing
// it, for logs and display. Works for JWS and opaque tokens alike.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "sha256:" + hex.EncodeToString(sum[:])[:16]
}
