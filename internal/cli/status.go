package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show external tool state and recent runs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus(rootOpts, cmd)
		},
	}
}

func showStatus(opts *RootOptions, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "STRATUS STATUS:")
	fmt.Fprintln(out, strings.Repeat("-", 40))
	status, err := opts.toolClient().Status(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "querying stratus status", err)
	}
	if strings.TrimSpace(status) == "" {
		fmt.Fprintln(out, "(no active state)")
	} else {
		fmt.Fprint(out, status)
		if !strings.HasSuffix(status, "\n") {
			fmt.Fprintln(out)
		}
	}
	fmt.Fprintln(out)

	store := opts.runStore()
	ids, err := store.List()
	if err != nil || len(ids) == 0 {
		return nil
	}
	if len(ids) > 5 {
		ids = ids[:5]
	}
	fmt.Fprintln(out, "RECENT RUNS:")
	fmt.Fprintln(out, strings.Repeat("-", 40))
	for _, id := range ids {
		rec, err := store.Load(id)
		if err != nil {
			continue
		}
		fmt.Fprintf(out, "  %s: %s\n", rec.RunID, rec.Status)
	}
	return nil
}
