// Package retention trims the decode history so a long running server does
// not grow its database without bound.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/dbehnke/lora-nexus/pkg/database"
	"github.com/dbehnke/lora-nexus/pkg/logger"
)

// DefaultInterval is how often the history is pruned when no interval is set
const DefaultInterval = time.Hour

// Store is the part of the decode repository the pruner needs
type Store interface {
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

var _ Store = (*database.DecodeRepository)(nil)

// Pruner periodically deletes decodes older than the retention window
type Pruner struct {
	store    Store
	keep     time.Duration
	interval time.Duration
	logger   *logger.Logger
	now      func() time.Time
}

// NewPruner creates a pruner keeping keep worth of history. A zero keep
// disables pruning.
func NewPruner(store Store, keep, interval time.Duration, log *logger.Logger) *Pruner {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Pruner{
		store:    store,
		keep:     keep,
		interval: interval,
		logger:   log.WithComponent("retention"),
		now:      time.Now,
	}
}

// Start prunes once, then every interval until ctx is done
func (p *Pruner) Start(ctx context.Context) {
	if p.keep <= 0 {
		p.logger.Debug("History retention disabled")
		return
	}

	p.logger.Info("Starting history pruner",
		logger.Duration("keep", p.keep),
		logger.Duration("interval", p.interval))
	if _, err := p.Prune(ctx); err != nil {
		p.logger.Error("Failed to prune history on startup", logger.Error(err))
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("History pruner stopped")
			return
		case <-ticker.C:
			if _, err := p.Prune(ctx); err != nil {
				p.logger.Error("Failed to prune history", logger.Error(err))
			}
		}
	}
}

// Prune deletes everything decoded before now minus the retention window
// and returns how many records went
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.keep <= 0 {
		return 0, nil
	}
	cutoff := p.now().Add(-p.keep)
	n, err := p.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete decodes before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		p.logger.Info("Pruned decode history",
			logger.Int64("deleted", n),
			logger.String("cutoff", cutoff.Format(time.RFC3339)))
	}
	return n, nil
}
