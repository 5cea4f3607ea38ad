// Package tokensource acquires the bearer credential used to authenticate
// against the IAGOS data service.
//
// Two acquisition strategies implement the Source interface:
//   - Manual wraps a token supplied by the caller (terminal prompt,
//     environment, file, keyring) without modifying it.
//   - DeviceFlow runs the OAuth2 Device Authorization Grant (RFC 8628)
//     against the ENVRI-ID provider and polls until the user has decided.
//
// Acquired credentials are held in memory only and are never persisted.
//
// # Device flow
//
//	flow, err := tokensource.NewDeviceFlow(&oauth2.Config{
//		ClientID: tokensource.ClientID,
//		Scopes:   strings.Fields(tokensource.Scope),
//		Endpoint: tokensource.Endpoint,
//	}, tokensource.WithNotify(showInstructions))
//	if err != nil { ... }
//	token, err := flow.Token(ctx)
//
// Token blocks until the user approves or a terminal outcome is reached:
// ErrAuthorizationDenied, ErrDeviceCodeExpired, ErrCancelled, or a
// ProtocolError carrying the provider's error code.
//
// # Manual input
//
//	src, err := tokensource.NewManual(tokensource.TerminalPrompt("Enter access token: "))
//	if err != nil { ... }
//	token, err := src.Token(ctx)
//
// Any func(ctx) (string, error) works as input, including the Read method of
// a tokenstore store.
package tokensource
