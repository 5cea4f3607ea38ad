package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v3"

	"github.com/aeris-data/iagos-fetch/internal/app"
	"github.com/aeris-data/iagos-fetch/internal/observability"
)

func downloadCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "download--output-dir",
			Aliases: []string{"o"},
			Usage:   "directory receiving the downloaded files",
			Value:   app.DefaultConfigOutputDir,
		},
		&cli.IntFlag{
			Name:  "download--concurrency",
			Usage: "maximum simultaneous downloads",
			Value: app.DefaultConfigConcurrency,
		},
		&cli.StringFlag{
			Name:  "service--base-url",
			Usage: "data service base URL",
			Value: app.DefaultConfigServiceBaseURL,
		},
	}
	flags = append(flags, authFlags()...)

	return &cli.Command{
		Name:      "download",
		Usage:     "Authenticate and download flight products",
		ArgsUsage: "FLIGHT_ID [FLIGHT_ID...]",
		Flags:     flags,
		Action:    downloadAction,
	}
}

func downloadAction(ctx context.Context, cmd *cli.Command) error {
	flights := cmd.Args().Slice()
	if len(flights) == 0 {
		return usageError(errors.New("at least one flight identifier is required"))
	}

	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return usageError(fmt.Errorf("failed to load config: %w", err))
	}

	// Set up observability before creating app
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

	spin := startSpinner(quiet, fmt.Sprintf(" Downloading %d flight(s)...", len(flights)))
	results, err := application.Download(ctx, credential, flights)
	stopSpinner(spin)
	if err != nil {
		return err
	}

	renderSummary(results)

	for _, res := range results {
		if res.Err != nil {
			return fmt.Errorf("flight %s: %w", res.FlightID, res.Err)
		}
	}
	return nil
}

// renderSummary prints one row per flight with its outcome.
func renderSummary(results []app.FlightResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"FLIGHT", "STATUS", "SIZE", "TIME", "OUTPUT"})

	for _, res := range results {
		if res.Err != nil {
			t.AppendRow(table.Row{
				res.FlightID,
				text.FgRed.Sprint("failed"),
				"",
				"",
				res.Err.Error(),
			})
			continue
		}
		t.AppendRow(table.Row{
			res.FlightID,
			text.FgGreen.Sprint("ok"),
			formatBytes(res.Result.Size),
			res.Result.Elapsed.Round(time.Millisecond),
			res.Result.Path,
		})
	}

	t.Render()
}

// formatBytes renders a byte count in a compact human unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
