package tokenstore

import "context"

// TokenStore reads operator-provisioned tokens.
//
// Stores are strictly read-only: tokens are placed there out of band (CI
// secret, dotfile, OS keyring entry) and this tool only ever consumes them.
// Acquired credentials are never written back.
type TokenStore interface {
	// Read returns the stored token. Returns error if token is missing or empty.
	Read(ctx context.Context) (string, error)
}
