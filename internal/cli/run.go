package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsrange/redrill/internal/engine"
	"github.com/opsrange/redrill/internal/runstore"
	"github.com/opsrange/redrill/internal/stratus"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Account     string
	Region      string
	Mode        string
	Tactic      string
	DwellMin    int
	DwellMax    int
	AllowRepeat bool
	AvoidLastN  int
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Detonate a random attack technique",
		Long: `Detonate a randomly selected attack technique in the target account.

The selected technique is persisted but not printed, keeping the exercise
blind. Only one run may be active at a time; a second invocation reports the
holder and exits.

Example:
  redrill run --account 123456789012 --region us-east-1
  redrill run --account 123456789012 --region us-east-1 --mode validate
  redrill run --account 123456789012 --region us-east-1 --tactic persistence`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAttack(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Account, "account", "", "expected AWS account ID (safety check, required)")
	cmd.Flags().StringVar(&opts.Region, "region", "", "AWS region (required)")
	cmd.Flags().StringVar(&opts.Mode, "mode", string(runstore.ModeTrain),
		"train=leave artifacts for IR, validate=auto-cleanup")
	cmd.Flags().StringVar(&opts.Tactic, "tactic", "", "filter techniques by MITRE ATT&CK tactic")
	cmd.Flags().IntVar(&opts.DwellMin, "dwell-min", 0, "min seconds between warmup and detonate")
	cmd.Flags().IntVar(&opts.DwellMax, "dwell-max", 0, "max seconds between warmup and detonate")
	cmd.Flags().BoolVar(&opts.AllowRepeat, "allow-repeat", false, "allow recently-used techniques")
	cmd.Flags().IntVar(&opts.AvoidLastN, "avoid-last-n", 5, "avoid the last N techniques")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("region")

	return cmd
}

func runAttack(opts *RunOptions, cmd *cobra.Command) error {
	mode, err := runstore.ParseMode(opts.Mode)
	if err != nil {
		return WrapExitError(ExitFailure, "invalid --mode", err)
	}
	if opts.Tactic != "" && !stratus.ValidTactic(opts.Tactic) {
		return NewExitError(ExitFailure,
			fmt.Sprintf("invalid --tactic %q: must be one of %v", opts.Tactic, stratus.ValidTactics))
	}
	if opts.DwellMin < 0 || opts.DwellMax < 0 {
		return NewExitError(ExitFailure, "dwell bounds must be >= 0")
	}
	if opts.DwellMax > 0 && opts.DwellMax < opts.DwellMin {
		return NewExitError(ExitFailure, "--dwell-max must be >= --dwell-min")
	}

	out := cmd.OutOrStdout()
	eng, closeEngine, err := opts.newEngine(func(rec *runstore.Record) {
		// The operator gets the run ID up front; the technique stays
		// hidden until reveal.
		fmt.Fprintf(out, "RUN_ID: %s\n", rec.RunID)
		fmt.Fprintf(out, "MODE: %s\n", rec.Mode)
		if rec.TacticFilter != "" {
			fmt.Fprintf(out, "TACTIC: %s\n", rec.TacticFilter)
		}
		fmt.Fprintln(out, "Attack launching...")
		fmt.Fprintln(out)
	})
	if err != nil {
		return WrapExitError(ExitFailure, "initializing run", err)
	}
	defer closeEngine()

	rec, err := eng.Run(cmd.Context(), engine.RunParams{
		Account:     opts.Account,
		Region:      opts.Region,
		Mode:        mode,
		Tactic:      opts.Tactic,
		DwellMin:    opts.DwellMin,
		DwellMax:    opts.DwellMax,
		AllowRepeat: opts.AllowRepeat,
		AvoidLastN:  opts.AvoidLastN,
	})
	if err != nil {
		if engine.IsBusy(err) {
			fmt.Fprintln(cmd.ErrOrStderr(), "If this is stale, the lock will auto-release when the process exits.")
		}
		return WrapExitError(ExitFailure, "run failed", err)
	}

	fmt.Fprintln(out, "Attack launched successfully.")
	fmt.Fprintln(out, "Your move: detect, investigate, respond.")
	fmt.Fprintf(out, "When done, run: redrill reveal %s\n", rec.RunID)
	return nil
}
