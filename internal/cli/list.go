package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opsrange/redrill/internal/runstore"
	"github.com/opsrange/redrill/internal/stratus"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Runs       bool
	Techniques bool
	Tactic     string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs or techniques",
		Long: `List recorded runs (the default) or the available techniques from the
external catalog.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Techniques {
				return listTechniques(opts, cmd)
			}
			return listRuns(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Runs, "runs", false, "list runs (default)")
	cmd.Flags().BoolVar(&opts.Techniques, "techniques", false, "list available techniques")
	cmd.Flags().StringVar(&opts.Tactic, "tactic", "", "filter techniques by tactic (with --techniques)")
	cmd.MarkFlagsMutuallyExclusive("runs", "techniques")

	return cmd
}

func listRuns(opts *ListOptions, cmd *cobra.Command) error {
	store := opts.runStore()
	ids, err := store.List()
	if err != nil {
		return WrapExitError(ExitFailure, "listing runs", err)
	}

	out := cmd.OutOrStdout()
	if len(ids) == 0 {
		fmt.Fprintln(out, "No runs yet.")
		return nil
	}
	if len(ids) > 20 {
		ids = ids[:20]
	}
	renderRunTable(out, store, ids)
	return nil
}

// renderRunTable prints one row per run, newest first. Corrupt records are
// rendered as errors rather than aborting the listing.
func renderRunTable(w io.Writer, store *runstore.Store, ids []string) {
	fmt.Fprintf(w, "%-30s %-15s %s\n", "RUN ID", "STATUS", "MODE")
	fmt.Fprintln(w, strings.Repeat("-", 55))
	for _, id := range ids {
		rec, err := store.Load(id)
		if err != nil {
			fmt.Fprintf(w, "%-30s %s\n", id, "(error)")
			continue
		}
		fmt.Fprintf(w, "%-30s %-15s %s\n", rec.RunID, rec.Status, rec.Mode)
	}
}

func listTechniques(opts *ListOptions, cmd *cobra.Command) error {
	if opts.Tactic != "" && !stratus.ValidTactic(opts.Tactic) {
		return NewExitError(ExitFailure,
			fmt.Sprintf("invalid --tactic %q: must be one of %v", opts.Tactic, stratus.ValidTactics))
	}

	techniques, err := opts.toolClient().ListTechniques(cmd.Context(), opts.Tactic)
	if err != nil {
		return WrapExitError(ExitFailure, "listing techniques", err)
	}

	renderTechniqueTable(cmd.OutOrStdout(), techniques)
	return nil
}

func renderTechniqueTable(w io.Writer, techniques []stratus.Technique) {
	fmt.Fprintf(w, "%-50s %s\n", "TECHNIQUE ID", "NAME")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, t := range techniques {
		fmt.Fprintf(w, "%-50s %s\n", t.ID, t.Name)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total: %d techniques\n", len(techniques))
}
