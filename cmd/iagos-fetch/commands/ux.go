package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/skratchdot/open-golang/open"
	"golang.org/x/oauth2"
	"golang.org/x/term"
)

// deviceFlowUX presents the device authorization to the operator: it prints
// the verification URL and user code, optionally opens a browser, and keeps a
// spinner running while the flow polls for the decision.
//
// Everything goes to stderr so stdout stays clean for piping.
type deviceFlowUX struct {
	quiet     bool
	noBrowser bool
	spin      *spinner.Spinner
}

func newDeviceFlowUX(quiet, noBrowser bool) *deviceFlowUX {
	return &deviceFlowUX{quiet: quiet, noBrowser: noBrowser}
}

// Notify presents the authorization to the operator. It is called once the
// provider has issued the user code; polling starts when it returns.
func (u *deviceFlowUX) Notify(auth *oauth2.DeviceAuthResponse) {
	target := auth.VerificationURIComplete
	if target == "" {
		target = auth.VerificationURI
	}

	if u.noBrowser {
		fmt.Fprintf(os.Stderr, "Please go to the following link: %s\n", target)
	} else {
		_ = open.Start(target)
		fmt.Fprintf(os.Stderr, "If your browser doesn't open automatically go to the following link: %s\n", target)
	}
	fmt.Fprintf(os.Stderr, "Enter code: %s\n", auth.UserCode)
	if !auth.Expiry.IsZero() {
		fmt.Fprintf(os.Stderr, "The code expires at %s\n", auth.Expiry.Format(time.Kitchen))
	}

	u.spin = startSpinner(u.quiet, " Waiting for authorization...")
}

// Stop halts the waiting spinner, if one is running.
func (u *deviceFlowUX) Stop() {
	if u.spin != nil {
		u.spin.Stop()
		u.spin = nil
	}
}

// startSpinner returns a running spinner on stderr, or nil when progress
// output is suppressed or stderr is not a terminal.
func startSpinner(quiet bool, suffix string) *spinner.Spinner {
	if quiet || !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = suffix
	s.Start()
	return s
}

// stopSpinner halts s, tolerating the nil spinner startSpinner hands out in
// quiet mode.
func stopSpinner(s *spinner.Spinner) {
	if s != nil {
		s.Stop()
	}
}
