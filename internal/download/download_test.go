package download

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

func testTokenSource() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token", TokenType: "Bearer"})
}

// binaryPayload returns n bytes cycling through all byte values, NULs
// included, so truncation and text-mode mangling cannot go unnoticed.
func binaryPayload(n int) []byte {
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte(i)
	}
	return payload
}

// listDir returns the names of all entries under dir.
func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestFetchWritesPayload(t *testing.T) {
	payload := binaryPayload(4096)
	const flightID = "2023050203041714"

	var gotReq *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(r.Context())
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	client, err := New(testTokenSource(), server.URL+"/v2.0/downloads")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	dir := t.TempDir()
	result, err := client.Fetch(t.Context(), Request{FlightID: flightID, OutputDir: dir})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	// Request shape.
	if gotReq.Method != http.MethodGet {
		t.Errorf("method = %s, want GET", gotReq.Method)
	}
	if want := "/v2.0/downloads/" + flightID; gotReq.URL.Path != want {
		t.Errorf("path = %q, want %q", gotReq.URL.Path, want)
	}
	if got := gotReq.Header.Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("Authorization = %q, want bearer token", got)
	}
	if got := gotReq.Header.Get("Accept"); got != "application/octet-stream" {
		t.Errorf("Accept = %q, want application/octet-stream", got)
	}
	if _, err := uuid.Parse(gotReq.Header.Get("X-Request-Id")); err != nil {
		t.Errorf("X-Request-Id = %q, not a UUID", gotReq.Header.Get("X-Request-Id"))
	}
	query := gotReq.URL.Query()
	for key, want := range map[string]string{"level": "2", "format": "netcdf", "type": "timeseries"} {
		if got := query.Get(key); got != want {
			t.Errorf("query %s = %q, want %q", key, got, want)
		}
	}

	// Result shape.
	wantPath := filepath.Join(dir, flightID+".nc")
	if result.Path != wantPath {
		t.Errorf("path = %q, want %q", result.Path, wantPath)
	}
	if result.Size != int64(len(payload)) {
		t.Errorf("size = %d, want %d", result.Size, len(payload))
	}
	wantSum := sha256.Sum256(payload)
	if result.SHA256 != hex.EncodeToString(wantSum[:]) {
		t.Errorf("sha256 = %s, want %s", result.SHA256, hex.EncodeToString(wantSum[:]))
	}

	// The written file is byte-identical to the payload.
	written, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !bytes.Equal(written, payload) {
		t.Errorf("written file differs from payload (%d vs %d bytes)", len(written), len(payload))
	}

	// No stray temp files.
	if names := listDir(t, dir); len(names) != 1 {
		t.Errorf("output dir entries = %v, want only the payload", names)
	}
}

func TestFetchRoundTrip(t *testing.T) {
	sizes := []int{1, 37, 64 * 1024, 1024*1024 + 3}

	for _, size := range sizes {
		t.Run(fmt.Sprintf("%dB", size), func(t *testing.T) {
			payload := binaryPayload(size)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write(payload)
			}))
			defer server.Close()

			client, err := New(testTokenSource(), server.URL)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			dir := t.TempDir()
			result, err := client.Fetch(t.Context(), Request{FlightID: "flight", OutputDir: dir})
			if err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}

			written, err := os.ReadFile(result.Path)
			if err != nil {
				t.Fatalf("reading output: %v", err)
			}
			if !bytes.Equal(written, payload) {
				t.Errorf("round trip lost bytes: wrote %d, read %d", len(payload), len(written))
			}
		})
	}
}

func TestFetchErrorStatuses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":"invalid_token"}`, wantErr: ErrAuthenticationRejected},
		{name: "forbidden", status: http.StatusForbidden, body: "missing entitlement", wantErr: ErrAuthenticationRejected},
		{name: "not found", status: http.StatusNotFound, body: "no such flight", wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := New(testTokenSource(), server.URL)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			dir := t.TempDir()
			_, err = client.Fetch(t.Context(), Request{FlightID: "flight", OutputDir: dir})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}

			// Nothing may exist on disk after a failed fetch.
			if names := listDir(t, dir); len(names) != 0 {
				t.Errorf("output dir entries = %v, want none", names)
			}
		})
	}
}

func TestFetchUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance window"))
	}))
	defer server.Close()

	client, err := New(testTokenSource(), server.URL)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	dir := t.TempDir()
	_, err = client.Fetch(t.Context(), Request{FlightID: "flight", OutputDir: dir})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want StatusError", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want 503", statusErr.StatusCode)
	}
	if statusErr.Body != "maintenance window" {
		t.Errorf("body snippet = %q", statusErr.Body)
	}
	if names := listDir(t, dir); len(names) != 0 {
		t.Errorf("output dir entries = %v, want none", names)
	}
}

func TestFetchEmptyPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := New(testTokenSource(), server.URL)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	dir := t.TempDir()
	_, err = client.Fetch(t.Context(), Request{FlightID: "flight", OutputDir: dir})
	if !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("err = %v, want ErrEmptyPayload", err)
	}
	if names := listDir(t, dir); len(names) != 0 {
		t.Errorf("output dir entries = %v, want none", names)
	}
}

func TestFetchTruncatedBody(t *testing.T) {
	// The handler promises a megabyte and delivers a fraction, then the
	// connection drops. The partial payload must not survive anywhere.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1048576")
		_, _ = w.Write(binaryPayload(1024))
	}))
	defer server.Close()

	client, err := New(testTokenSource(), server.URL)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	dir := t.TempDir()
	_, err = client.Fetch(t.Context(), Request{FlightID: "flight", OutputDir: dir})

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("err = %v, want TransportError", err)
	}
	if names := listDir(t, dir); len(names) != 0 {
		t.Errorf("output dir entries = %v, want none", names)
	}
}

func TestFetchConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client, err := New(testTokenSource(), server.URL)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = client.Fetch(t.Context(), Request{FlightID: "flight", OutputDir: t.TempDir()})

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("err = %v, want TransportError", err)
	}
}

func TestFetchInvalidFlightID(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	client, err := New(testTokenSource(), server.URL)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for _, id := range []string{"", ".", "..", "a/b", `a\b`, "../../etc/passwd"} {
		t.Run(fmt.Sprintf("%q", id), func(t *testing.T) {
			_, err := client.Fetch(t.Context(), Request{FlightID: id, OutputDir: t.TempDir()})
			if !errors.Is(err, ErrInvalidFlightID) {
				t.Fatalf("err = %v, want ErrInvalidFlightID", err)
			}
		})
	}

	if requests != 0 {
		t.Errorf("requests issued = %d, want 0", requests)
	}
}

func TestFetchProductOverride(t *testing.T) {
	var query map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		_, _ = w.Write([]byte("data"))
	}))
	defer server.Close()

	client, err := New(testTokenSource(), server.URL, WithProduct("1", "csv", "profile"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := client.Fetch(t.Context(), Request{FlightID: "flight", OutputDir: t.TempDir()}); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	for key, want := range map[string]string{"level": "1", "format": "csv", "type": "profile"} {
		if got := query[key]; len(got) != 1 || got[0] != want {
			t.Errorf("query %s = %v, want %q", key, got, want)
		}
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		ts      oauth2.TokenSource
		baseURL string
	}{
		{name: "nil token source", ts: nil, baseURL: "https://example.org"},
		{name: "relative URL", ts: testTokenSource(), baseURL: "/downloads"},
		{name: "garbage URL", ts: testTokenSource(), baseURL: "://nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.ts, tt.baseURL); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func BenchmarkFetch(b *testing.B) {
	payload := binaryPayload(64 * 1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	client, err := New(testTokenSource(), server.URL)
	if err != nil {
		b.Fatalf("New failed: %v", err)
	}

	dir := b.TempDir()
	b.ReportAllocs()
	b.SetBytes(int64(len(payload)))

	for b.Loop() {
		if _, err := client.Fetch(context.Background(), Request{FlightID: "flight", OutputDir: dir}); err != nil {
			b.Fatalf("Fetch failed: %v", err)
		}
	}
}
