package tokensource

import (
	"golang.org/x/oauth2"
)

const (
	// ClientID is the public OAuth2 client identifier registered with the
	// ENVRI-ID authentication service. This is a public client (no client
	// secret) limited to the device authorization grant.
	ClientID = "envri-token-cli"

	// DeviceAuthURL is the device authorization endpoint of the ENVRI-ID
	// staging realm.
	DeviceAuthURL = "https://login.staging.envri.eu/auth/realms/envri/protocol/openid-connect/auth/device"

	// TokenURL is the token endpoint of the ENVRI-ID staging realm.
	TokenURL = "https://login.staging.envri.eu/auth/realms/envri/protocol/openid-connect/token"

	// Scope lists the OAuth scopes requested during authorization,
	// space-separated. The entitlements scope carries the AAI group
	// memberships the data service checks.
	Scope = "openid profile email entitlements"
)

// Endpoint defines the OAuth2 endpoints for ENVRI-ID authentication.
var Endpoint = oauth2.Endpoint{
	DeviceAuthURL: DeviceAuthURL,
	TokenURL:      TokenURL,
	AuthStyle:     oauth2.AuthStyleInParams,
}
