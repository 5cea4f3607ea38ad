package tokensource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Token endpoint error codes observed while the authorization is pending
// (RFC 8628 section 3.5).
const (
	errAuthorizationPending = "authorization_pending"
	errSlowDown             = "slow_down"
	errAccessDenied         = "access_denied"
	errExpiredToken         = "expired_token"
)

const (
	// grantTypeDeviceCode is the grant_type of device code token requests
	// (RFC 8628 section 3.4).
	grantTypeDeviceCode = "urn:ietf:params:oauth:grant-type:device_code"

	// defaultPollInterval applies when the provider omits interval
	// (RFC 8628 section 3.2).
	defaultPollInterval = 5 * time.Second

	// slowDownStep is the mandated interval increase per slow_down response.
	slowDownStep = 5 * time.Second

	// defaultSessionLifetime bounds polling when the provider omits
	// expires_in, so a broken provider cannot keep the loop alive forever.
	defaultSessionLifetime = 10 * time.Minute

	// defaultMaxPollInterval caps slow_down growth.
	defaultMaxPollInterval = 60 * time.Second
)

// DeviceFlowOption configures a DeviceFlow.
type DeviceFlowOption func(*DeviceFlow)

// WithHTTPClient sets the HTTP client used for authorization and token
// requests. If not provided, a client with a 30 second timeout is used so a
// single stalled request cannot hang the flow.
func WithHTTPClient(client *http.Client) DeviceFlowOption {
	return func(f *DeviceFlow) {
		f.client = client
	}
}

// WithNotify registers a callback invoked once the provider has issued the
// authorization, carrying the user code and verification URI to present.
// Polling starts after the callback returns.
func WithNotify(notify func(*oauth2.DeviceAuthResponse)) DeviceFlowOption {
	return func(f *DeviceFlow) {
		f.notify = notify
	}
}

// WithMaxInterval caps the polling interval growth caused by slow_down
// responses. The cap never cuts below the interval the provider asked for
// initially.
func WithMaxInterval(d time.Duration) DeviceFlowOption {
	return func(f *DeviceFlow) {
		if d > 0 {
			f.maxInterval = d
		}
	}
}

// DeviceFlow acquires a credential through the OAuth2 Device Authorization
// Grant (RFC 8628): it registers an authorization request with the provider,
// hands the user code to the notify callback, and polls the token endpoint
// until the user approves, the user rejects, or the authorization expires.
//
// Polling never issues two token requests closer together than the current
// interval, and slow_down responses only ever grow that interval.
type DeviceFlow struct {
	cfg         *oauth2.Config
	client      *http.Client
	notify      func(*oauth2.DeviceAuthResponse)
	maxInterval time.Duration

	// Overridable in tests to run the poll loop against a fake clock.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Compile-time check to ensure DeviceFlow implements Source
var _ Source = (*DeviceFlow)(nil)

// NewDeviceFlow creates a DeviceFlow for the given OAuth2 client
// configuration. The endpoint must carry both the device authorization and
// the token URL.
func NewDeviceFlow(cfg *oauth2.Config, opts ...DeviceFlowOption) (*DeviceFlow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("oauth2 config cannot be nil")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID cannot be empty")
	}
	if cfg.Endpoint.DeviceAuthURL == "" || cfg.Endpoint.TokenURL == "" {
		return nil, fmt.Errorf("endpoint must define device authorization and token URLs")
	}

	f := &DeviceFlow{
		cfg:         cfg,
		client:      &http.Client{Timeout: 30 * time.Second},
		maxInterval: defaultMaxPollInterval,
		now:         time.Now,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Token runs the device authorization grant to completion. It blocks for as
// long as the provider allows the user to approve, bounded by the
// authorization's expiry, and honors ctx for cancellation throughout.
func (f *DeviceFlow) Token(ctx context.Context) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	auth, err := f.start(ctx)
	if err != nil {
		return nil, err
	}

	if f.notify != nil {
		f.notify(auth)
	}

	return f.poll(ctx, auth)
}

// start registers the authorization request with the provider and fills in
// protocol defaults the provider left out.
func (f *DeviceFlow) start(ctx context.Context) (*oauth2.DeviceAuthResponse, error) {
	// The oauth2 package picks up the HTTP client from the context.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.client)

	auth, err := f.cfg.DeviceAuth(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
		}
		return nil, startError(err)
	}

	if auth.DeviceCode == "" || auth.UserCode == "" {
		return nil, &ProtocolError{Description: "authorization response missing device_code or user_code"}
	}

	if auth.Expiry.IsZero() {
		auth.Expiry = f.now().Add(defaultSessionLifetime)
	}
	if auth.Interval == 0 {
		auth.Interval = int64(defaultPollInterval / time.Second)
	}

	return auth, nil
}

// startError maps a failed device authorization request onto ProtocolError,
// preserving the provider's error code when one was returned. The oauth2
// package keeps the raw body on RetrieveError without decoding it for this
// endpoint, so the OAuth error fields are recovered here.
func startError(err error) error {
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) {
		return &ProtocolError{Err: err}
	}

	pe := &ProtocolError{Code: rerr.ErrorCode, Description: rerr.ErrorDescription, Err: err}
	if pe.Code == "" {
		var body struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(rerr.Body, &body) == nil {
			pe.Code = body.Error
			if pe.Description == "" {
				pe.Description = body.ErrorDescription
			}
		}
	}
	return pe
}

// poll drives the token endpoint until a terminal outcome. The first request
// goes out immediately; the wait happens after each pending response.
func (f *DeviceFlow) poll(ctx context.Context, auth *oauth2.DeviceAuthResponse) (*oauth2.Token, error) {
	interval := time.Duration(auth.Interval) * time.Second
	maxInterval := f.maxInterval
	if maxInterval < interval {
		maxInterval = interval
	}

	for {
		if !f.now().Before(auth.Expiry) {
			return nil, ErrDeviceCodeExpired
		}

		token, err := f.requestToken(ctx, auth.DeviceCode)
		if err == nil {
			return token, nil
		}

		var retry *retryError
		if !errors.As(err, &retry) {
			return nil, err
		}
		if retry.slowDown {
			interval += slowDownStep
			if interval > maxInterval {
				interval = maxInterval
			}
		}

		// Truncate the wait at the session expiry so the loop reports
		// expiration promptly instead of sleeping past it.
		wait := interval
		if remaining := auth.Expiry.Sub(f.now()); remaining < wait {
			wait = remaining
		}
		if wait > 0 {
			if err := f.sleep(ctx, wait); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
			}
		}
	}
}

// retryError signals a poll outcome that keeps the loop running.
type retryError struct {
	slowDown bool
}

func (e *retryError) Error() string {
	if e.slowDown {
		return errSlowDown
	}
	return errAuthorizationPending
}

// requestToken performs a single token endpoint request for the device code
// and maps the response onto the acquisition error taxonomy.
func (f *DeviceFlow) requestToken(ctx context.Context, deviceCode string) (*oauth2.Token, error) {
	form := url.Values{}
	form.Set("client_id", f.cfg.ClientID)
	form.Set("device_code", deviceCode)
	form.Set("grant_type", grantTypeDeviceCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &ProtocolError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
		}
		return nil, &ProtocolError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &ProtocolError{Description: "reading token response", Err: err}
	}

	// Pending responses arrive with a 4xx status, so the body is decoded
	// regardless of the status code.
	var raw struct {
		AccessToken      string `json:"access_token"`
		TokenType        string `json:"token_type"`
		RefreshToken     string `json:"refresh_token"`
		ExpiresIn        int64  `json:"expires_in"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &ProtocolError{Description: "malformed token response", Err: err}
	}

	switch {
	case raw.Error == "" && raw.AccessToken != "":
		token := &oauth2.Token{
			AccessToken:  raw.AccessToken,
			TokenType:    raw.TokenType,
			RefreshToken: raw.RefreshToken,
		}
		if raw.ExpiresIn > 0 {
			token.Expiry = f.now().Add(time.Duration(raw.ExpiresIn) * time.Second)
		}
		return token, nil
	case raw.Error == errAuthorizationPending:
		return nil, &retryError{}
	case raw.Error == errSlowDown:
		return nil, &retryError{slowDown: true}
	case raw.Error == errAccessDenied:
		return nil, ErrAuthorizationDenied
	case raw.Error == errExpiredToken:
		return nil, ErrDeviceCodeExpired
	case raw.Error != "":
		return nil, &ProtocolError{Code: raw.Error, Description: raw.ErrorDescription}
	default:
		return nil, &ProtocolError{Description: fmt.Sprintf("token response without access_token (HTTP %d)", resp.StatusCode)}
	}
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
