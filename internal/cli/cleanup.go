package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCleanupCommand creates the cleanup command.
func NewCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup <run_id>",
		Short: "Tear down a run (revert + cleanup)",
		Long: `Undo the detonation effects and remove the warmup infrastructure for a
run, then mark it cleaned. Both steps are attempted even if the first fails.
Run this only after the owning run process has exited.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cleanupRun(rootOpts, cmd, args[0])
		},
	}
}

func cleanupRun(opts *RootOptions, cmd *cobra.Command, runID string) error {
	eng, closeEngine, err := opts.newEngine(nil)
	if err != nil {
		return WrapExitError(ExitFailure, "initializing cleanup", err)
	}
	defer closeEngine()

	report, err := eng.Cleanup(cmd.Context(), runID)
	if err != nil {
		return WrapExitError(ExitFailure, "cleanup failed", err)
	}

	out := cmd.OutOrStdout()
	if report.AlreadyDone {
		fmt.Fprintf(out, "Run %s is already cleaned.\n", runID)
		return nil
	}

	fmt.Fprintf(out, "Cleaned up run %s.\n", runID)
	fmt.Fprintf(out, "Technique: %s\n", report.Record.Technique)
	if report.RevertErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "WARNING: revert failed: %v\n", report.RevertErr)
	}
	if report.CleanupErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "WARNING: cleanup failed: %v\n", report.CleanupErr)
	}
	fmt.Fprintln(out, "Cleanup complete.")
	return nil
}
