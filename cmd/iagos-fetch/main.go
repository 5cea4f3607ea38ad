package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aeris-data/iagos-fetch/cmd/iagos-fetch/commands"
	"github.com/aeris-data/iagos-fetch/internal/download"
	"github.com/aeris-data/iagos-fetch/internal/tokensource"
)

// Exit codes, grouped by where the run failed. Scripts branch on these
// instead of parsing error text.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2

	// Credential acquisition
	exitEmptyToken          = 10
	exitAuthorizationDenied = 11
	exitDeviceCodeExpired   = 12
	exitProtocolError       = 13

	// Download
	exitAuthenticationRejected = 14
	exitNotFound               = 15
	exitTransport              = 16
	exitUnexpectedStatus       = 17

	// Interrupted by signal or cancellation, following the shell's 128+SIGINT.
	exitInterrupted = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "iagos-fetch: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps err onto the exit code taxonomy. Cancellation wins over
// every other classification: an interrupted download should report the
// interrupt, not whatever failure the teardown produced.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, tokensource.ErrCancelled),
		errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.Is(err, commands.ErrUsage),
		errors.Is(err, download.ErrInvalidFlightID):
		return exitUsage
	case errors.Is(err, tokensource.ErrEmptyToken):
		return exitEmptyToken
	case errors.Is(err, tokensource.ErrAuthorizationDenied):
		return exitAuthorizationDenied
	case errors.Is(err, tokensource.ErrDeviceCodeExpired):
		return exitDeviceCodeExpired
	case errors.Is(err, download.ErrAuthenticationRejected):
		return exitAuthenticationRejected
	case errors.Is(err, download.ErrNotFound):
		return exitNotFound
	case errors.Is(err, download.ErrEmptyPayload):
		return exitUnexpectedStatus
	default:
	}

	var protocolErr *tokensource.ProtocolError
	if errors.As(err, &protocolErr) {
		return exitProtocolError
	}
	var transportErr *download.TransportError
	if errors.As(err, &transportErr) {
		return exitTransport
	}
	var statusErr *download.StatusError
	if errors.As(err, &statusErr) {
		return exitUnexpectedStatus
	}

	return exitFailure
}
