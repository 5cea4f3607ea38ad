package tokensource

import (
	"context"

	"golang.org/x/oauth2"
)

// Source acquires a bearer credential.
//
// Acquisition runs to completion before the credential is used anywhere:
// implementations block until the credential is available or the acquisition
// has failed for good. The credential lives in memory only; implementations
// never write it to storage.
type Source interface {
	// Token returns the acquired credential. The context cancels the
	// acquisition, including any interactive wait.
	Token(ctx context.Context) (*oauth2.Token, error)
}
