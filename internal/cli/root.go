// Package cli implements the redrill command tree: run, reveal, cleanup,
// list and status. Commands print on the command's writers and return
// ExitErrors, so tests drive them end to end without a process boundary.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsrange/redrill/internal/config"
	"github.com/opsrange/redrill/internal/engine"
	"github.com/opsrange/redrill/internal/history"
	"github.com/opsrange/redrill/internal/lockfile"
	"github.com/opsrange/redrill/internal/runstore"
	"github.com/opsrange/redrill/internal/stratus"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose    bool
	ConfigPath string
	DataDir    string

	// Tool overrides the external tool client (for testing).
	// If nil, the real stratus and aws CLIs are used.
	Tool stratus.Client

	cfg config.Config
}

// NewRootCommand creates the root command for the redrill CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redrill",
		Short: "Blind attack drills with stratus-red-team",
		Long: `redrill detonates a randomly selected stratus-red-team attack technique
and keeps the choice hidden, so the responding team practices detection and
investigation without knowing what to look for. Reveal the technique with
"redrill reveal <run_id>" once the exercise is over.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
			slog.SetDefault(slog.New(handler))

			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitFailure, "loading configuration", err)
			}
			if opts.DataDir != "" {
				cfg.DataDir = opts.DataDir
			}
			opts.cfg = cfg
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "",
		"storage root (default $"+config.EnvDataDir+" or ~/.redrill)")

	// Add subcommands
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewRevealCommand(opts))
	cmd.AddCommand(NewCleanupCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))

	return cmd
}

// Config returns the resolved configuration. Valid after PersistentPreRunE.
func (o *RootOptions) Config() config.Config {
	return o.cfg
}

// toolClient returns the external tool client, honoring the test override.
func (o *RootOptions) toolClient() stratus.Client {
	if o.Tool != nil {
		return o.Tool
	}
	return stratus.NewCLI(o.cfg.StratusBin, o.cfg.AWSBin)
}

// runStore returns the run record store rooted at the configured data dir.
func (o *RootOptions) runStore() *runstore.Store {
	return runstore.NewStore(o.cfg.RunsDir())
}

// newEngine assembles an engine wired to the configured stores. The returned
// closer releases the history database.
func (o *RootOptions) newEngine(onStart func(*runstore.Record)) (*engine.Engine, func(), error) {
	if err := os.MkdirAll(o.cfg.DataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating data directory: %w", err)
	}
	hist, err := history.Open(o.cfg.HistoryPath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening technique history: %w", err)
	}
	eng := engine.New(engine.Options{
		Lock:       lockfile.New(o.cfg.LockPath()),
		Records:    o.runStore(),
		History:    hist,
		Tool:       o.toolClient(),
		HistoryMax: o.cfg.HistoryMax,
		OnStart:    onStart,
	})
	return eng, func() { _ = hist.Close() }, nil
}
