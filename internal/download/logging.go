package download

import (
	"log/slog"
	"net/http"
	"time"
)

// loggingTransport logs each service request with method, URL, status, and
// duration at debug level. Headers and bodies are never logged; by the time
// a request passes through here it carries the bearer token.
type loggingTransport struct {
	base http.RoundTripper
}

var _ http.RoundTripper = (*loggingTransport)(nil)

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		slog.DebugContext(req.Context(), "service request failed",
			"method", req.Method,
			"url", req.URL.Redacted(),
			"duration", time.Since(start),
			"error", err)
		return nil, err
	}

	slog.DebugContext(req.Context(), "service request",
		"method", req.Method,
		"url", req.URL.Redacted(),
		"status", resp.StatusCode,
		"duration", time.Since(start))
	return resp, nil
}
