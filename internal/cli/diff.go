package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/signerstate/internal/state"
)

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	ExitCode bool
}

// DiffResult is the diff command output.
type DiffResult struct {
	Changes []ChangeView `json:"changes"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff <base> <other>",
		Short: "Show what other holds that base lacks",
		Long: `Show the entries of <other> that <base> lacks or holds an older version of.

The comparison is one-directional: entries only <base> has are not listed.
Run with the arguments swapped for the other direction.

Exit codes:
  0 - Snapshots compared (or no differences with --exit-code)
  1 - Differences found (with --exit-code)
  2 - Command error (unreadable snapshot, etc.)

Examples:
  signerstate diff local.sgst remote.sgst
  signerstate diff local.sgst remote.sgst --exit-code`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(opts, cmd, args[0], args[1])
		},
	}

	cmd.Flags().BoolVar(&opts.ExitCode, "exit-code", false, "exit with 1 when differences are found")

	return cmd
}

func runDiff(opts *DiffOptions, cmd *cobra.Command, basePath, otherPath string) error {
	out := newFormatter(opts.RootOptions, cmd)

	base, err := readSnapshotFile(basePath)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to read base snapshot", err)
	}
	other, err := readSnapshotFile(otherPath)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to read other snapshot", err)
	}

	changes := state.Diff(base, other)
	text := changeLines(changes)
	if len(changes) == 0 {
		text = "No differences.\n"
	}
	if err := out.Success(text, DiffResult{Changes: changeViews(changes)}); err != nil {
		return err
	}

	if opts.ExitCode && len(changes) > 0 {
		return NewExitError(ExitFailure, "snapshots differ")
	}
	return nil
}
