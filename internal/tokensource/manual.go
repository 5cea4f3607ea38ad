package tokensource

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

// InputFunc supplies a raw token string, e.g. from a terminal prompt or an
// operator-provisioned token store.
type InputFunc func(ctx context.Context) (string, error)

// Manual acquires a credential from caller-supplied input instead of an
// authorization server. The input is used verbatim: beyond the blank check
// there is no validation, no normalization, and no expiry handling.
type Manual struct {
	input InputFunc
}

// Compile-time check to ensure Manual implements Source
var _ Source = (*Manual)(nil)

// NewManual creates a Manual source reading its token from input.
func NewManual(input InputFunc) (*Manual, error) {
	if input == nil {
		return nil, fmt.Errorf("input function cannot be nil")
	}
	return &Manual{input: input}, nil
}

// Token wraps the supplied string as a bearer token, byte for byte as
// provided. Blank input (empty or whitespace-only) fails with ErrEmptyToken.
func (m *Manual) Token(ctx context.Context) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	raw, err := m.input(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading token input: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyToken
	}

	return &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}, nil
}
