// Package retention deletes reports older than the configured age on a fixed
// interval. The sweep is best-effort and idempotent: a failed or repeated run
// never affects in-flight report generation.
package retention

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mandela-labs/report-cli/internal/store"
)

// Config controls the retention sweep.
type Config struct {
	Enabled           bool
	Days              int
	Interval          time.Duration
	CompactAfterPurge bool
}

// Sweeper purges old reports in the background.
type Sweeper struct {
	store store.Store
	cfg   Config
}

// NewSweeper creates a retention sweeper.
func NewSweeper(st store.Store, cfg Config) *Sweeper {
	if cfg.Days <= 0 {
		cfg.Days = 180
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	return &Sweeper{store: st, cfg: cfg}
}

// Run starts the periodic purge loop. It blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "retention"))
	log.Info("starting retention sweeper",
		zap.Int("days", s.cfg.Days),
		zap.Duration("interval", s.cfg.Interval),
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("retention sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx, log)
		}
	}
}

// Sweep runs one purge pass. Errors are logged and swallowed so housekeeping
// never takes the service down.
func (s *Sweeper) Sweep(ctx context.Context, log *zap.Logger) {
	deleted, err := s.store.PurgeOlderThan(ctx, s.cfg.Days)
	if err != nil {
		log.Error("retention purge failed", zap.Error(err))
		return
	}
	if deleted == 0 {
		log.Debug("retention sweep found nothing to purge")
		return
	}

	log.Info("retention purge complete", zap.Int("reports_deleted", deleted))

	if s.cfg.CompactAfterPurge {
		if err := s.store.Compact(ctx); err != nil {
			log.Error("compaction after purge failed", zap.Error(err))
		}
	}
}
