package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/signerstate/internal/state"
	"github.com/roach88/signerstate/internal/syncer"
)

// MergeOptions holds flags for the merge command.
type MergeOptions struct {
	*RootOptions
	Output string
}

// MergeResult is the merge command output.
type MergeResult struct {
	Output  string       `json:"output"`
	Changes []ChangeView `json:"changes"`
	Entries int          `json:"entries"`
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MergeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "merge <local> <incoming>",
		Short: "Merge an incoming snapshot into a local one",
		Long: `Merge <incoming> into <local>, keeping the higher version of every entry.

Entries of <incoming> older than the local copy are skipped and logged as
warnings. The result is written to --out, or back to <local> when --out is
not given.

Examples:
  signerstate merge local.sgst remote.sgst
  signerstate merge local.sgst remote.sgst --out merged.sgst`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(opts, cmd, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "out", "o", "", "output snapshot (default: overwrite <local>)")

	return cmd
}

func runMerge(opts *MergeOptions, cmd *cobra.Command, localPath, incomingPath string) error {
	out := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr(), slog.LevelWarn)

	local, err := loadSnapshotStore(localPath, state.WithLogger(logger))
	if err != nil {
		return out.Fail(ExitCommandError, "failed to read local snapshot", err)
	}
	incoming, err := readSnapshotFile(incomingPath)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to read incoming snapshot", err)
	}

	changes := local.Merge(incoming)

	dest := opts.Output
	if dest == "" {
		dest = localPath
	}
	if err := syncer.WriteSnapshotFile(dest, local.Export()); err != nil {
		return out.Fail(ExitCommandError, "failed to write snapshot", err)
	}
	out.VerboseLog("wrote %d entries to %s", local.Len(), dest)

	text := changeLines(changes)
	if len(changes) == 0 {
		text = "Already up to date.\n"
	}
	return out.Success(text, MergeResult{
		Output:  dest,
		Changes: changeViews(changes),
		Entries: local.Len(),
	})
}
