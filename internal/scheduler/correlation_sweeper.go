package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/yashkhare05/Uptime/internal/logger"
)

// Expirer drops pending requests that outlived their TTL.
type Expirer interface {
	ExpirePending() int
}

// CorrelationSweeper periodically expires validate requests that never got
// a reply, so a validator that disconnects mid-cycle does not leak entries.
type CorrelationSweeper struct {
	expirer  Expirer
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCorrelationSweeper creates a new sweeper
func NewCorrelationSweeper(expirer Expirer, log logger.Logger, interval time.Duration) *CorrelationSweeper {
	return &CorrelationSweeper{
		expirer:  expirer,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep
func (cs *CorrelationSweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(cs.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cs.Sweep()
			case <-cs.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the sweeper
func (cs *CorrelationSweeper) Stop() {
	cs.stopOnce.Do(func() { close(cs.stopCh) })
}

// Sweep runs one expiry pass and returns how many requests were dropped
func (cs *CorrelationSweeper) Sweep() int {
	n := cs.expirer.ExpirePending()
	if n == 0 {
		cs.logger.Debug("no pending requests to expire")
	}
	return n
}
