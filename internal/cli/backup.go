package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/signerstate/internal/backup"
	"github.com/roach88/signerstate/internal/state"
	"github.com/roach88/signerstate/internal/syncer"
)

// BackupOptions holds flags shared by the backup subcommands.
type BackupOptions struct {
	*RootOptions
	Database string
	Driver   string
}

// BackupSaveResult is the backup save command output.
type BackupSaveResult struct {
	Entries int         `json:"entries"`
	Written int         `json:"written"`
	Deleted int         `json:"deleted"`
	Stale   []state.Key `json:"stale"`
}

// BackupRestoreResult is the backup restore command output.
type BackupRestoreResult struct {
	Output  string `json:"output"`
	Entries int    `json:"entries"`
}

// NewBackupCommand creates the backup command group.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BackupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Mirror snapshots to durable storage",
		Long: `Save a snapshot file into a backup database, or restore one from it.

Drivers:
  sqlite - single database file (default)
  pebble - database directory`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to backup database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", backup.DriverSQLite, "backup driver (sqlite|pebble)")

	cmd.AddCommand(newBackupSaveCommand(opts))
	cmd.AddCommand(newBackupRestoreCommand(opts))

	return cmd
}

func newBackupSaveCommand(opts *BackupOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "save <snapshot>",
		Short: "Save a snapshot file into the backup",
		Long: `Replace the backup contents with the entries of <snapshot>.

Entries whose backed-up version is newer than the snapshot's are kept and
reported as stale.

Exit codes:
  0 - Backup saved
  1 - Backup saved, but some entries were stale
  2 - Command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupSave(opts, cmd, args[0])
		},
	}
}

func newBackupRestoreCommand(opts *BackupOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <snapshot>",
		Short: "Write the backup out as a snapshot file",
		Args:  cobra.ExactArgs(1),
		Example: `  signerstate backup restore --db state.db restored.sgst
  signerstate backup restore --db state.pebble --driver pebble restored.sgst`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupRestore(opts, cmd, args[0])
		},
	}
}

func runBackupSave(opts *BackupOptions, cmd *cobra.Command, path string) error {
	ctx := context.Background()
	out := newFormatter(opts.RootOptions, cmd)

	records, err := readSnapshotFile(path)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to read snapshot", err)
	}
	if _, err := state.Import(records); err != nil {
		return out.Fail(ExitCommandError, "invalid snapshot", err)
	}

	b, err := backup.Open(opts.Driver, opts.Database)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to open backup", err)
	}
	defer b.Close()

	res, err := b.Save(ctx, records)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to save backup", err)
	}

	result := BackupSaveResult{
		Entries: len(records),
		Written: res.Written,
		Deleted: res.Deleted,
		Stale:   res.Stale,
	}
	if result.Stale == nil {
		result.Stale = []state.Key{}
	}

	text := fmt.Sprintf("Saved %d entries (%d written, %d deleted)\n", result.Entries, result.Written, result.Deleted)
	for _, k := range result.Stale {
		text += fmt.Sprintf("Stale: %s (backup holds a newer version)\n", k)
	}
	if err := out.Success(text, result); err != nil {
		return err
	}

	if len(result.Stale) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d stale entries kept at their backed-up version", len(result.Stale)))
	}
	return nil
}

func runBackupRestore(opts *BackupOptions, cmd *cobra.Command, path string) error {
	ctx := context.Background()
	out := newFormatter(opts.RootOptions, cmd)

	b, err := backup.Open(opts.Driver, opts.Database)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to open backup", err)
	}
	defer b.Close()

	records, err := b.Load(ctx)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to load backup", err)
	}
	s, err := state.Import(records)
	if err != nil {
		return out.Fail(ExitCommandError, "invalid backup contents", err)
	}
	if err := syncer.WriteSnapshotFile(path, s.Export()); err != nil {
		return out.Fail(ExitCommandError, "failed to write snapshot", err)
	}

	return out.Success(
		fmt.Sprintf("Restored %d entries to %s\n", s.Len(), path),
		BackupRestoreResult{Output: path, Entries: s.Len()},
	)
}
