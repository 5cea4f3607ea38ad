package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/aeris-data/iagos-fetch/internal/download"
	"github.com/aeris-data/iagos-fetch/internal/introspect"
	"github.com/aeris-data/iagos-fetch/internal/tokensource"
)

// tracer spans credential acquisition and each fetch. Spans are no-ops
// unless the embedding process installed a tracer provider; the log
// pipeline picks up their context either way.
var tracer = otel.Tracer("github.com/aeris-data/iagos-fetch/internal/app")

// Option configures an App.
type Option func(*App)

// WithDeviceNotify registers the callback that presents the device flow's
// user code and verification URL to the operator. Without it the device
// flow still runs, the operator just never learns where to go.
func WithDeviceNotify(notify func(*oauth2.DeviceAuthResponse)) Option {
	return func(a *App) {
		a.deviceNotify = notify
	}
}

// App orchestrates one run: acquire a credential, then download flights
// with it.
type App struct {
	cfg          *Config
	deviceNotify func(*oauth2.DeviceAuthResponse)
}

// New creates a new App instance.
func New(cfg *Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// AcquireToken runs the configured acquisition strategy to completion and
// returns the credential. It blocks for as long as the strategy needs, the
// device flow in particular until the operator has decided; ctx cancels the
// wait.
func (a *App) AcquireToken(ctx context.Context) (*oauth2.Token, error) {
	ctx, span := tracer.Start(ctx, "acquire_token",
		trace.WithAttributes(attribute.String("auth.method", string(a.cfg.Auth.Method))))
	defer span.End()

	source, err := a.newTokenSource()
	if err != nil {
		span.SetStatus(codes.Error, "building token source")
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create token source: %w", err)
	}

	slog.InfoContext(ctx, "acquiring credential", "method", a.cfg.Auth.Method)

	token, err := source.Token(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "acquisition failed")
		span.RecordError(err)
		return nil, fmt.Errorf("acquiring credential: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	slog.InfoContext(ctx, "credential acquired",
		"method", a.cfg.Auth.Method,
		"token", introspect.Fingerprint(token.AccessToken))
	return token, nil
}

// newTokenSource creates the acquisition strategy from application configuration.
// No I/O is performed - prompts, stores, and the provider are only touched by Token().
func (a *App) newTokenSource() (tokensource.Source, error) {
	switch a.cfg.Auth.Method {
	case AuthenticationMethodDevice:
		cfg := &oauth2.Config{
			ClientID: a.cfg.Auth.Device.ClientID,
			Scopes:   strings.Fields(a.cfg.Auth.Device.Scope),
			Endpoint: oauth2.Endpoint{
				DeviceAuthURL: a.cfg.Auth.Device.DeviceEndpoint,
				TokenURL:      a.cfg.Auth.Device.TokenEndpoint,
				AuthStyle:     oauth2.AuthStyleInParams,
			},
		}
		opts := []tokensource.DeviceFlowOption{
			tokensource.WithMaxInterval(a.cfg.Auth.Device.MaxInterval),
		}
		if a.deviceNotify != nil {
			opts = append(opts, tokensource.WithNotify(a.deviceNotify))
		}
		return tokensource.NewDeviceFlow(cfg, opts...)
	case AuthenticationMethodStatic:
		input, err := a.cfg.Auth.NewInput()
		if err != nil {
			return nil, err
		}
		return tokensource.NewManual(input)
	default:
		return nil, fmt.Errorf("unsupported authentication method: %s", a.cfg.Auth.Method)
	}
}

// FlightResult is the outcome of one flight's download.
type FlightResult struct {
	FlightID string

	// Result describes the written file; nil when Err is set.
	Result *download.Result

	// Err is the flight's failure; nil on success.
	Err error
}

// Download fetches every flight with the given credential, at most
// Concurrency at a time. One flight's failure never cancels its siblings:
// the outcome of each flight, success or failure, lands in its FlightResult,
// in input order. The returned error reports setup problems only.
//
// The credential is shared read-only across workers; each worker runs its
// own HTTP client.
func (a *App) Download(ctx context.Context, credential *oauth2.Token, flights []string) ([]FlightResult, error) {
	if credential == nil || credential.AccessToken == "" {
		return nil, fmt.Errorf("credential is required")
	}
	if len(flights) == 0 {
		return nil, fmt.Errorf("no flights requested")
	}

	source := oauth2.StaticTokenSource(credential)
	results := make([]FlightResult, len(flights))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Download.Concurrency)

	for i, flightID := range flights {
		g.Go(func() error {
			results[i] = a.fetchOne(gCtx, source, flightID)
			// Per-flight failures stay in the result slot so the
			// remaining flights keep downloading.
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// fetchOne downloads a single flight with its own client.
func (a *App) fetchOne(ctx context.Context, source oauth2.TokenSource, flightID string) FlightResult {
	ctx, span := tracer.Start(ctx, "download_flight",
		trace.WithAttributes(attribute.String("flight.id", flightID)))
	defer span.End()

	client, err := download.New(source, a.cfg.Service.BaseURL,
		download.WithTimeout(a.cfg.Service.RequestTimeout),
		download.WithProduct(a.cfg.Service.Level, a.cfg.Service.Format, a.cfg.Service.Type),
	)
	if err != nil {
		span.SetStatus(codes.Error, "building download client")
		span.RecordError(err)
		return FlightResult{FlightID: flightID, Err: fmt.Errorf("failed to create download client: %w", err)}
	}

	slog.InfoContext(ctx, "downloading flight", "flight_id", flightID)

	result, err := client.Fetch(ctx, download.Request{
		FlightID:  flightID,
		OutputDir: a.cfg.Download.OutputDir,
	})
	if err != nil {
		span.SetStatus(codes.Error, "fetch failed")
		span.RecordError(err)
		slog.ErrorContext(ctx, "download failed", "flight_id", flightID, "error", err)
		return FlightResult{FlightID: flightID, Err: err}
	}

	span.SetStatus(codes.Ok, "")
	slog.InfoContext(ctx, "file downloaded",
		"flight_id", flightID,
		"path", result.Path,
		"bytes", result.Size,
		"sha256", result.SHA256,
		"elapsed", result.Elapsed)
	return FlightResult{FlightID: flightID, Result: result}
}
