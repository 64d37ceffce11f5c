package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsrange/redrill/internal/runstore"
	"github.com/opsrange/redrill/internal/stratus"
)

// NewRevealCommand creates the reveal command.
func NewRevealCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reveal <run_id>",
		Short: "Reveal the technique behind a run",
		Long: `Print the full record for a run, including the technique that was kept
hidden during the exercise.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return revealRun(rootOpts, cmd, args[0])
		},
	}
}

func revealRun(opts *RootOptions, cmd *cobra.Command, runID string) error {
	store := opts.runStore()
	rec, err := store.Load(runID)
	if errors.Is(err, runstore.ErrNotFound) {
		listAvailableRuns(cmd.ErrOrStderr(), store)
		return WrapExitError(ExitFailure, "reveal failed", err)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "reveal failed", err)
	}

	renderRecord(cmd.OutOrStdout(), rec)
	return nil
}

// listAvailableRuns prints the most recent run IDs as a hint after a missed
// lookup.
func listAvailableRuns(w io.Writer, store *runstore.Store) {
	ids, err := store.List()
	if err != nil || len(ids) == 0 {
		return
	}
	if len(ids) > 5 {
		ids = ids[:5]
	}
	fmt.Fprintln(w, "Available runs:")
	for _, id := range ids {
		fmt.Fprintf(w, "  %s\n", id)
	}
}

// renderRecord prints the full run details block.
func renderRecord(w io.Writer, rec *runstore.Record) {
	sep := strings.Repeat("=", 60)
	fmt.Fprintln(w, sep)
	fmt.Fprintf(w, "RUN DETAILS: %s\n", rec.RunID)
	fmt.Fprintln(w, sep)
	fmt.Fprintf(w, "Technique:  %s\n", rec.Technique)
	fmt.Fprintf(w, "Account:    %s\n", rec.Account)
	fmt.Fprintf(w, "Region:     %s\n", rec.Region)
	fmt.Fprintf(w, "Mode:       %s\n", rec.Mode)
	fmt.Fprintf(w, "Status:     %s\n", rec.Status)
	if rec.TacticFilter != "" {
		fmt.Fprintf(w, "Tactic:     %s\n", rec.TacticFilter)
	}
	fmt.Fprintf(w, "Started:    %s\n", rec.StartedAt.Format(time.RFC3339))
	if rec.WarmupAt != nil {
		fmt.Fprintf(w, "Warmup:     %s\n", rec.WarmupAt.Format(time.RFC3339))
	}
	if rec.DetonatedAt != nil {
		fmt.Fprintf(w, "Detonated:  %s\n", rec.DetonatedAt.Format(time.RFC3339))
	}
	if rec.CleanedAt != nil {
		fmt.Fprintf(w, "Cleaned:    %s\n", rec.CleanedAt.Format(time.RFC3339))
	}
	if rec.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", rec.Error)
	}
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Documentation:")
	fmt.Fprintf(w, "  %s\n", stratus.DocumentationURL(rec.Technique))
}
