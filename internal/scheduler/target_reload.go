package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yashkhare05/Uptime/internal/domain"
	"github.com/yashkhare05/Uptime/internal/logger"
	"github.com/yashkhare05/Uptime/internal/sources/targets"
)

// TargetWriter persists targets.
type TargetWriter interface {
	UpsertTargets(ctx context.Context, targets []domain.Target) error
}

// TargetReloader periodically upserts the targets file into the store.
// Targets absent from the file are left as they are.
type TargetReloader struct {
	loader   *targets.Loader
	store    TargetWriter
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewTargetReloader creates a new target reloader
func NewTargetReloader(targetsFile string, store TargetWriter, log logger.Logger, interval time.Duration) *TargetReloader {
	return &TargetReloader{
		loader:   targets.NewLoader(targetsFile),
		store:    store,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start loads the file once, then keeps reloading it every interval.
// A failing first load is returned so a broken file stops startup.
func (tr *TargetReloader) Start(ctx context.Context) error {
	if err := tr.Reload(ctx); err != nil {
		return fmt.Errorf("initial target load failed: %w", err)
	}

	ticker := time.NewTicker(tr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := tr.Reload(ctx); err != nil {
					tr.logger.Error("failed to reload targets",
						logger.Error(err))
				}
			case <-tr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (tr *TargetReloader) Stop() {
	tr.stopOnce.Do(func() { close(tr.stopCh) })
}

// Reload reads the targets file and upserts every entry
func (tr *TargetReloader) Reload(ctx context.Context) error {
	file, err := tr.loader.Load()
	if err != nil {
		return err
	}

	list, err := targets.MapTargets(file)
	if err != nil {
		return fmt.Errorf("failed to map targets: %w", err)
	}

	if err := tr.store.UpsertTargets(ctx, list); err != nil {
		return fmt.Errorf("failed to save targets: %w", err)
	}

	tr.logger.Info("targets loaded",
		logger.String("file", tr.loader.Path()),
		logger.Int("count", len(list)))
	return nil
}
