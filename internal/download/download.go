// Package download fetches observation files from the IAGOS data service,
// authenticating every request with an OAuth2 bearer token and writing each
// payload to disk atomically.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Product selection defaults, matching what the data service serves for
// IAGOS flights.
const (
	DefaultLevel  = "2"
	DefaultFormat = "netcdf"
	DefaultType   = "timeseries"
)

// DefaultTimeout bounds a download request end to end, headers and body.
const DefaultTimeout = 60 * time.Second

// fileSuffix is appended to the flight identifier to form the output name.
const fileSuffix = ".nc"

// Option configures a Client.
type Option func(*clientConfig)

// clientConfig holds configuration for New.
type clientConfig struct {
	timeout       time.Duration
	baseTransport http.RoundTripper
	level         string
	format        string
	typ           string
}

// WithTimeout bounds each download request end to end. Zero disables the
// bound entirely.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithTransport sets a custom base transport under the authenticating
// transport. If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *clientConfig) {
		c.baseTransport = transport
	}
}

// WithProduct selects the product variant requested from the service. Empty
// values keep the defaults.
func WithProduct(level, format, typ string) Option {
	return func(c *clientConfig) {
		if level != "" {
			c.level = level
		}
		if format != "" {
			c.format = format
		}
		if typ != "" {
			c.typ = typ
		}
	}
}

// Request identifies one flight product to download.
type Request struct {
	// FlightID is the flight identifier, e.g. "2023050203041714".
	FlightID string

	// OutputDir receives the downloaded file as <FlightID>.nc. Empty means
	// the current directory.
	OutputDir string
}

// Result describes a completed download.
type Result struct {
	FlightID string

	// Path is the final location of the payload.
	Path string

	// Size is the payload size in bytes.
	Size int64

	// SHA256 is the hex-encoded digest of the payload.
	SHA256 string

	// Elapsed is the wall time the download took.
	Elapsed time.Duration
}

// Client downloads flight products from the data service. Every request
// carries a bearer token drawn from the configured token source.
//
// A Client is safe for concurrent use; callers that want request isolation
// can also cheaply create one Client per worker over a shared static token
// source.
type Client struct {
	base   *url.URL
	client *http.Client
	query  url.Values
}

// New creates a Client for the data service at baseURL.
func New(ts oauth2.TokenSource, baseURL string, opts ...Option) (*Client, error) {
	if ts == nil {
		return nil, fmt.Errorf("token source cannot be nil")
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid service URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("service URL must be absolute: %q", baseURL)
	}

	cfg := &clientConfig{
		timeout:       DefaultTimeout,
		baseTransport: http.DefaultTransport,
		level:         DefaultLevel,
		format:        DefaultFormat,
		typ:           DefaultType,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	query := url.Values{}
	query.Set("level", cfg.level)
	query.Set("format", cfg.format)
	query.Set("type", cfg.typ)

	return &Client{
		base: base,
		client: &http.Client{
			Timeout: cfg.timeout,
			Transport: &oauth2.Transport{
				Source: ts,
				Base:   &loggingTransport{base: cfg.baseTransport},
			},
		},
		query: query,
	}, nil
}

// Fetch downloads one flight product. The payload streams into a temp file
// next to the target and is renamed into place only after the body has been
// read completely, so a failed download never leaves a partial file at the
// final path.
func (c *Client) Fetch(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Err: err}
	}
	if err := validateFlightID(req.FlightID); err != nil {
		return nil, err
	}

	start := time.Now()

	httpReq, err := c.newRequest(ctx, req.FlightID)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = "."
	}
	finalPath := filepath.Join(outputDir, req.FlightID+fileSuffix)

	size, sum, err := writeAtomic(finalPath, resp.Body)
	if err != nil {
		return nil, err
	}

	return &Result{
		FlightID: req.FlightID,
		Path:     finalPath,
		Size:     size,
		SHA256:   sum,
		Elapsed:  time.Since(start),
	}, nil
}

// newRequest builds the GET request for one flight. The Authorization header
// is injected by the oauth2 transport.
func (c *Client) newRequest(ctx context.Context, flightID string) (*http.Request, error) {
	u := c.base.JoinPath(flightID)
	u.RawQuery = c.query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Accept", "application/octet-stream")
	req.Header.Set("X-Request-Id", uuid.NewString())
	return req, nil
}

// validateFlightID rejects identifiers that are empty or would escape the
// output directory once joined into a file name.
func validateFlightID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidFlightID, id)
	}
	return nil
}

// checkStatus maps non-2xx responses onto the fetch error taxonomy.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuthenticationRejected, resp.Status)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, resp.Status)
	default:
		return &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       readSnippet(resp.Body),
		}
	}
}

// readSnippet drains up to 1KB of the body for error context.
func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 1024))
	return strings.TrimSpace(string(b))
}

// writeAtomic streams body into a temp file in the target's directory and
// renames it into place once the copy has completed. On any failure the temp
// file is removed and nothing exists at path.
func writeAtomic(path string, body io.Reader) (int64, string, error) {
	dir := filepath.Dir(path)
	tempFile, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, "", fmt.Errorf("creating temp file: %w", err)
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths; no-ops once the rename succeeded.
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	digest := sha256.New()
	size, err := io.Copy(tempFile, io.TeeReader(body, digest))
	if err != nil {
		// A write error surfaces as *os.PathError; everything else means the
		// body stream broke underneath us.
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return 0, "", fmt.Errorf("writing payload: %w", err)
		}
		return 0, "", &TransportError{Err: fmt.Errorf("reading payload: %w", err)}
	}
	if size == 0 {
		return 0, "", ErrEmptyPayload
	}

	if err := tempFile.Close(); err != nil {
		return 0, "", fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tempName, path); err != nil {
		return 0, "", fmt.Errorf("moving payload into place: %w", err)
	}

	return size, hex.EncodeToString(digest.Sum(nil)), nil
}
