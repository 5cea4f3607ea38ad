package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/aeris-data/iagos-fetch/internal/app"
)

// version is set at build time via -ldflags "-X ...commands.version=x.y.z".
var version = "dev"

// ErrUsage marks failures caused by how the tool was invoked or configured,
// as opposed to failures of the acquisition or download themselves.
var ErrUsage = errors.New("usage error")

// usageError wraps err so it carries the usage classification.
func usageError(err error) error {
	return fmt.Errorf("%w: %w", ErrUsage, err)
}

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	return rootCommand().Run(ctx, args)
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:    "iagos-fetch",
		Usage:   "Download IAGOS flight products with ENVRI-ID authentication",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json|otlp)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "suppress progress output",
			},
		},
		Commands: []*cli.Command{
			downloadCommand(),
			tokenCommand(),
		},
	}
}

// authFlags are shared by every command that acquires a credential.
func authFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "auth--method",
			Usage: "authentication method (device|static)",
			Value: string(app.DefaultConfigAuthMethod),
		},
		&cli.StringFlag{
			Name:  "auth--source",
			Usage: "static token source (prompt|file|env|keyring)",
			Value: string(app.DefaultConfigAuthSource),
		},
		&cli.BoolFlag{
			Name:  "auth--device--no-browser",
			Usage: "do not open the verification URL in a browser",
		},
	}
}
