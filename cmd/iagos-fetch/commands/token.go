package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v3"

	"github.com/aeris-data/iagos-fetch/internal/app"
	"github.com/aeris-data/iagos-fetch/internal/introspect"
	"github.com/aeris-data/iagos-fetch/internal/observability"
	"github.com/aeris-data/iagos-fetch/internal/tokensource"
)

func tokenCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:  "raw",
			Usage: "print only the access token, for piping",
		},
	}
	flags = append(flags, authFlags()...)

	return &cli.Command{
		Name:   "token",
		Usage:  "Acquire a credential and show what it carries",
		Flags:  flags,
		Action: tokenAction,
	}
}

func tokenAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return usageError(fmt.Errorf("failed to load config: %w", err))
	}

	if err := observability.Instrument(cfg.LogLevel, string(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to set up observability layer: %w", err)
	}
	defer func() {
		if err := observability.Shutdown(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("failed to shut down observability layer", "error", err)
		}
	}()

	quiet := cmd.Bool("quiet")
	ux := newDeviceFlowUX(quiet, cfg.Auth.Device.NoBrowser)

	application, err := app.New(cfg, app.WithDeviceNotify(ux.Notify))
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	credential, err := application.AcquireToken(ctx)
	ux.Stop()
	if err != nil {
		return err
	}

	if cmd.Bool("raw") {
		fmt.Println(credential.AccessToken)
		return nil
	}

	renderClaims(credential.AccessToken)
	return nil
}

// renderClaims prints the token fingerprint and, when the token is a
// decodable JWS, the claims it carries. The raw token itself is only ever
// printed through --raw.
func renderClaims(accessToken string) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"CLAIM", "VALUE"})
	t.AppendRow(table.Row{"token", tokensource.RedactedToken(accessToken)})
	t.AppendRow(table.Row{"fingerprint", introspect.Fingerprint(accessToken)})

	claims, err := introspect.Decode(accessToken)
	if err != nil {
		t.Render()
		fmt.Println("Token is not a decodable JWS; claims unavailable. Use --raw to print it.")
		return
	}

	appendIfSet := func(name, value string) {
		if value != "" {
			t.AppendRow(table.Row{name, value})
		}
	}
	appendIfSet("subject", claims.Subject)
	appendIfSet("issuer", claims.Issuer)
	appendIfSet("username", claims.Username)
	appendIfSet("email", claims.Email)
	appendIfSet("scope", claims.Scope)
	if !claims.IssuedAt.IsZero() {
		t.AppendRow(table.Row{"issued", claims.IssuedAt.Format(time.RFC3339)})
	}
	if !claims.ExpiresAt.IsZero() {
		expires := claims.ExpiresAt.Format(time.RFC3339)
		if claims.Expired(time.Now()) {
			expires = text.FgRed.Sprintf("%s (expired)", expires)
		} else {
			expires = text.FgGreen.Sprint(expires)
		}
		t.AppendRow(table.Row{"expires", expires})
	}
	if len(claims.Entitlements) > 0 {
		t.AppendRow(table.Row{"entitlements", strings.Join(claims.Entitlements, "\n")})
	}

	t.Render()
}
