package introspect

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// buildJWS assembles a compact JWS from the given payload with a fake
// signature. Decode never verifies, so the signature content is irrelevant.
func buildJWS(t *testing.T, payload map[string]any) string {
	t.Helper()

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshaling payload: %v", err)
	}
	signature := base64.RawURLEncoding.EncodeToString([]byte("not-a-real-signature"))

	return header + "." + base64.RawURLEncoding.EncodeToString(body) + "." + signature
}

func TestDecode(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	token := buildJWS(t, map[string]any{
		"sub":                "f1e2d3c4-0000-4000-8000-123456789abc",
		"iss":                "https://login.staging.envri.eu/auth/realms/envri",
		"email":              "observer@aeris-data.fr",
		"preferred_username": "observer",
		"scope":              "openid profile email entitlements",
		"iat":                now.Unix(),
		"exp":                now.Add(5 * time.Minute).Unix(),
		"eduperson_entitlement": []string{
			"urn:mace:envri.eu:group:iagos#sso.envri.eu",
			"urn:mace:envri.eu:group:iagos:readers#sso.envri.eu",
		},
	})

	claims, err := Decode(token)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if claims.Subject != "f1e2d3c4-0000-4000-8000-123456789abc" {
		t.Errorf("subject = %q", claims.Subject)
	}
	if claims.Issuer != "https://login.staging.envri.eu/auth/realms/envri" {
		t.Errorf("issuer = %q", claims.Issuer)
	}
	if claims.Email != "observer@aeris-data.fr" {
		t.Errorf("email = %q", claims.Email)
	}
	if claims.Username != "observer" {
		t.Errorf("username = %q", claims.Username)
	}
	if claims.Scope != "openid profile email entitlements" {
		t.Errorf("scope = %q", claims.Scope)
	}
	if !claims.IssuedAt.Equal(now) {
		t.Errorf("issued at = %v, want %v", claims.IssuedAt, now)
	}
	if !claims.ExpiresAt.Equal(now.Add(5 * time.Minute)) {
		t.Errorf("expires at = %v, want %v", claims.ExpiresAt, now.Add(5*time.Minute))
	}
	if len(claims.Entitlements) != 2 || !strings.Contains(claims.Entitlements[0], "group:iagos") {
		t.Errorf("entitlements = %v", claims.Entitlements)
	}
}

func TestDecodeMissingClaims(t *testing.T) {
	claims, err := Decode(buildJWS(t, map[string]any{"sub": "someone"}))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if !claims.IssuedAt.IsZero() || !claims.ExpiresAt.IsZero() {
		t.Errorf("absent timestamps decoded as %v / %v, want zero", claims.IssuedAt, claims.ExpiresAt)
	}
	if claims.Expired(time.Now()) {
		t.Error("token without exp reported as expired")
	}
}

func TestDecodeOpaqueToken(t *testing.T) {
	for _, token := range []string{"", "not-a-jwt", "a.b", "ZW52cmk-opaque-token"} {
		if _, err := Decode(token); err == nil {
			t.Errorf("Decode(%q) succeeded, want error", token)
		}
	}
}

func TestClaimsExpired(t *testing.T) {
	now := time.Now()
	claims := &Claims{ExpiresAt: now}

	if claims.Expired(now.Add(-time.Second)) {
		t.Error("token reported expired before exp")
	}
	if !claims.Expired(now) {
		t.Error("token not expired exactly at exp")
	}
	if !claims.Expired(now.Add(time.Second)) {
		t.Error("token not expired after exp")
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("token-a")
	b := Fingerprint("token-b")

	if a == b {
		t.Error("different tokens share a fingerprint")
	}
	if a != Fingerprint("token-a") {
		t.Error("fingerprint not deterministic")
	}
	if !strings.HasPrefix(a, "sha256:") || len(a) != len("sha256:")+16 {
		t.Errorf("fingerprint shape = %q", a)
	}
	if strings.Contains(a, "token-a") {
		t.Errorf("fingerprint leaks the token: %q", a)
	}
}
