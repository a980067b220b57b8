package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/signerstate/internal/backup"
	"github.com/roach88/signerstate/internal/config"
	"github.com/roach88/signerstate/internal/state"
	"github.com/roach88/signerstate/internal/syncer"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Config      string
	Peer        string
	Database    string
	Driver      string
	Interval    time.Duration
	Once        bool
	MetricsAddr string
}

// SyncResult is the output of a single sync round.
type SyncResult struct {
	Session   string       `json:"session"`
	Recovered []ChangeView `json:"recovered"`
	Pulled    []ChangeView `json:"pulled"`
	Pushed    int          `json:"pushed"`
	Entries   int          `json:"entries"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the backed-up state with a peer snapshot",
		Long: `Restore local state from the backup database, then reconcile it with the
peer snapshot file: entries the peer holds newer copies of are pulled, entries
the local side holds newer copies of are pushed into the peer file, and the
result is saved back to the backup.

Without --once, rounds repeat every sync interval until interrupted.

Settings come from --config (YAML); flags override the file.

Examples:
  signerstate sync --db state.db --peer remote.sgst --once
  signerstate sync --config signerstate.yaml --peer remote.sgst --metrics-addr :9464`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config file")
	cmd.Flags().StringVar(&opts.Peer, "peer", "", "path to peer snapshot file (required)")
	_ = cmd.MarkFlagRequired("peer")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to backup database (overrides config)")
	cmd.Flags().StringVar(&opts.Driver, "driver", "", "backup driver (overrides config)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "sync interval (overrides config)")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "run a single round and exit")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

// resolveConfig merges the config file with flag overrides.
func resolveConfig(opts *SyncOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if opts.Database != "" {
		cfg.Backup.Path = opts.Database
	}
	if opts.Driver != "" {
		cfg.Backup.Driver = opts.Driver
	}
	if opts.Interval > 0 {
		cfg.Sync.Interval = opts.Interval
		if cfg.Sync.Timeout > cfg.Sync.Interval {
			cfg.Sync.Timeout = cfg.Sync.Interval
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if !cfg.BackupEnabled() {
		return cfg, errors.New("a backup database is required (--db or backup.path)")
	}
	return cfg, nil
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	cfg, err := resolveConfig(opts)
	if err != nil {
		return out.Fail(ExitCommandError, "invalid configuration", err)
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr(), level)

	b, err := backup.Open(cfg.Backup.Driver, cfg.Backup.Path)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to open backup", err)
	}
	defer func() {
		if closeErr := b.Close(); closeErr != nil {
			logger.Error("error closing backup", "error", closeErr)
		}
	}()

	reg := prometheus.NewRegistry()
	handle := state.NewHandle(state.New(state.WithLogger(logger)))
	s := syncer.New(handle, syncer.FilePeer{Path: opts.Peer},
		syncer.WithBackup(b),
		syncer.WithLogger(logger),
		syncer.WithMetrics(syncer.NewMetrics(reg)),
		syncer.WithTimeout(cfg.Sync.Timeout),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              opts.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
		logger.Info("serving metrics", "addr", opts.MetricsAddr)
	}

	recovered, err := s.Recover(ctx)
	if err != nil {
		return out.Fail(ExitCommandError, "recovery failed", err)
	}

	if !opts.Once {
		logger.Info("starting sync loop", "interval", cfg.Sync.Interval, "peer", opts.Peer)
		return s.Run(ctx, cfg.Sync.Interval)
	}

	report, err := s.SyncOnce(ctx)
	if err != nil {
		return out.Fail(ExitCommandError, "sync round failed", err)
	}

	result := SyncResult{
		Session:   report.Session,
		Recovered: changeViews(recovered),
		Pulled:    changeViews(report.Pulled),
		Pushed:    len(report.Pushed),
		Entries:   handle.Len(),
	}
	text := changeLines(recovered) + changeLines(report.Pulled) +
		fmt.Sprintf("Synced %d entries: %d pulled, %d pushed (session %s)\n",
			result.Entries, len(recovered)+len(report.Pulled), result.Pushed, result.Session)
	return out.Success(text, result)
}
