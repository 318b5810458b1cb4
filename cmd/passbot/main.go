// Command passbot predicts satellite passes over a ground station and
// publishes them as Google Calendar events.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jwcutler/passbot/internal/config"
)

// defaultConfigFile is picked up from the working directory when --config
// is not given.
const defaultConfigFile = "config.yaml"

// errFailures marks a run that finished but had per-item failures, which
// have already been logged.
var errFailures = errors.New("passbot: completed with failures")

type app struct {
	configPath string
	logLevel   string
	dryRun     bool

	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	a := &app{}
	err := a.rootCmd().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	if !errors.Is(err, errFailures) {
		if a.logger != nil {
			a.logger.Error("passbot failed", "error", err)
		} else {
			fmt.Fprintf(os.Stderr, "passbot: %v\n", err)
		}
	}
	os.Exit(1)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "passbot",
		Short: "Predict satellite passes and add them to Google Calendar",
		Long: `passbot finds the visible passes of a satellite over an observer and
creates one calendar event per pass. Batch mode processes every satellite
in the configuration file; serve mode exposes predictions over HTTP.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML configuration file (default ./"+defaultConfigFile+" if present)")
	pf.StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	pf.BoolVar(&a.dryRun, "dry-run", false, "log calendar changes instead of making them")

	root.AddCommand(a.trackCmd(), a.predictCmd(), a.deleteCmd(), a.batchCmd(), a.serveCmd())
	return root
}

// setup builds the logger and loads configuration before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", a.logLevel, err)
	}
	a.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	path := a.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}
	cfg, err := config.Load(path, a.logger)
	if err != nil {
		return err
	}
	if path != "" {
		a.logger.Debug("loaded configuration", "path", path, "satellites", len(cfg.Satellites))
	}
	a.cfg = cfg
	return nil
}
