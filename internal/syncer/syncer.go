package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/signerstate/internal/backup"
	"github.com/roach88/signerstate/internal/state"
)

// Syncer runs synchronization rounds between a local handle and a peer.
type Syncer struct {
	handle   *state.Handle
	peer     Peer
	backup   backup.Backend
	logger   *slog.Logger
	sessions SessionGenerator
	metrics  *Metrics
	timeout  time.Duration
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithBackup mirrors the local snapshot to b after each round.
func WithBackup(b backup.Backend) Option {
	return func(s *Syncer) { s.backup = b }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// WithSessions sets the session id generator. Defaults to UUIDv7Generator.
func WithSessions(g SessionGenerator) Option {
	return func(s *Syncer) { s.sessions = g }
}

// WithMetrics sets the metrics sink. Defaults to unregistered metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Syncer) { s.metrics = m }
}

// WithTimeout bounds each round. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Syncer) { s.timeout = d }
}

// New creates a Syncer for handle and peer.
func New(handle *state.Handle, peer Peer, opts ...Option) *Syncer {
	s := &Syncer{
		handle:   handle,
		peer:     peer,
		logger:   slog.Default(),
		sessions: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	return s
}

// Report describes one completed round.
type Report struct {
	Session string

	// Pulled lists the local changes applied from the peer.
	Pulled []state.Change

	// Pushed lists the records delivered to the peer.
	Pushed []state.Record

	// Backup is set when a backup was saved.
	Backup *backup.SaveResult
}

// SyncOnce runs one round. On error the local store keeps whatever the round
// merged before failing; merges are never rolled back.
func (s *Syncer) SyncOnce(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{Session: s.sessions.Generate()}
	log := s.logger.With("session", report.Session)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	err := s.round(ctx, log, &report)

	s.metrics.Duration.Observe(time.Since(start).Seconds())
	s.metrics.Entries.Set(float64(s.handle.Len()))
	if err != nil {
		s.metrics.Rounds.WithLabelValues(resultFailed).Inc()
		log.Error("sync round failed", "error", err)
		return report, err
	}
	s.metrics.Rounds.WithLabelValues(resultOK).Inc()
	log.Info("sync round complete",
		"pulled", len(report.Pulled),
		"pushed", len(report.Pushed),
		"duration", time.Since(start))
	return report, nil
}

func (s *Syncer) round(ctx context.Context, log *slog.Logger, report *Report) error {
	remote, err := s.peer.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	log.Debug("fetched peer snapshot", "entries", len(remote))

	incoming := state.Pending(s.handle.Export(), remote)
	report.Pulled = s.handle.Merge(incoming)
	s.metrics.Pulled.Add(float64(len(report.Pulled)))
	for _, c := range report.Pulled {
		log.Debug("pulled", "change", c.String())
	}

	local := s.handle.Export()
	outgoing := state.Pending(remote, local)
	if len(outgoing) > 0 {
		if err := s.peer.Push(ctx, outgoing); err != nil {
			return fmt.Errorf("push: %w", err)
		}
		report.Pushed = outgoing
		s.metrics.Pushed.Add(float64(len(outgoing)))
	}

	if s.backup != nil {
		res, err := s.backup.Save(ctx, local)
		if err != nil {
			return fmt.Errorf("backup: %w", err)
		}
		if len(res.Stale) > 0 {
			log.Warn("backup holds newer versions than local state", "keys", res.Stale)
		}
		report.Backup = &res
	}
	return nil
}

// Run performs a round immediately and then once per interval until ctx is
// done. Failed rounds are logged and retried at the next tick.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("run: interval must be positive, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		// Errors are already logged and counted by SyncOnce.
		_, _ = s.SyncOnce(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("sync loop stopped", "reason", ctx.Err())
			return nil
		case <-ticker.C:
		}
	}
}

// Recover restores local state after a restart: the durable backup is loaded
// first, then the peer's snapshot is merged on top. A peer failure leaves the
// restored backup in place and is returned.
func (s *Syncer) Recover(ctx context.Context) ([]state.Change, error) {
	if s.backup != nil {
		records, err := s.backup.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("recover: load backup: %w", err)
		}
		if err := s.handle.Restore(records); err != nil {
			return nil, fmt.Errorf("recover: restore backup: %w", err)
		}
		s.logger.Info("restored backup", "entries", len(records))
	}

	remote, err := s.peer.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("recover: fetch: %w", err)
	}
	changes := s.handle.Merge(remote)
	s.logger.Info("merged peer snapshot", "entries", len(remote), "changes", len(changes))
	return changes, nil
}
