package cli

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/signerstate/internal/wire"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Prefix string
}

// EntryView is one listed entry.
type EntryView struct {
	Key       string `json:"key"`
	Namespace string `json:"namespace"`
	Version   uint64 `json:"version"`
	Size      int    `json:"size"`
}

// InspectResult is the inspect command output.
type InspectResult struct {
	Entries []EntryView `json:"entries"`
	Total   int         `json:"total"`
	Digest  string      `json:"digest"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <snapshot>",
		Short: "List the entries of a snapshot file",
		Long: `List the entries of a snapshot file in key order.

The digest is the BLAKE3-256 of the encoded entries, so two snapshots
holding the same state print the same digest.

Examples:
  signerstate inspect state.sgst
  signerstate inspect state.sgst --prefix nodestates/
  signerstate inspect state.sgst --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "only list keys with this prefix")

	return cmd
}

func runInspect(opts *InspectOptions, cmd *cobra.Command, path string) error {
	out := newFormatter(opts.RootOptions, cmd)

	s, err := loadSnapshotStore(path)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to read snapshot", err)
	}

	digest := wire.Digest(s.Export())
	result := InspectResult{
		Entries: []EntryView{},
		Total:   s.Len(),
		Digest:  hex.EncodeToString(digest[:]),
	}
	for k, e := range s.ListByPrefix(opts.Prefix) {
		result.Entries = append(result.Entries, EntryView{
			Key:       string(k),
			Namespace: string(k.Namespace()),
			Version:   e.Version,
			Size:      len(e.Value),
		})
	}

	var b strings.Builder
	for _, e := range result.Entries {
		fmt.Fprintf(&b, "%s\tv%d\t%d bytes\n", e.Key, e.Version, e.Size)
	}
	fmt.Fprintf(&b, "%d of %d entries, digest %s\n", len(result.Entries), result.Total, result.Digest)

	return out.Success(b.String(), result)
}
