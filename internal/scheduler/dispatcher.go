package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yashkhare05/Uptime/internal/hub"
	"github.com/yashkhare05/Uptime/internal/logger"
)

// DispatchRunner runs one dispatch cycle.
type DispatchRunner interface {
	Dispatch(ctx context.Context) (hub.DispatchStats, error)
}

// Dispatcher fires a dispatch cycle every interval, or on demand through
// the manual trigger channel. Cycles never overlap.
type Dispatcher struct {
	runner        DispatchRunner
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	started       atomic.Bool
	done          chan struct{}
	manualTrigger chan struct{}
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(runner DispatchRunner, log logger.Logger, interval time.Duration, manualTrigger chan struct{}) *Dispatcher {
	return &Dispatcher{
		runner:        runner,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start begins the periodic dispatch. The first cycle runs one interval
// after Start.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.started.Store(true)
	ticker := time.NewTicker(d.interval)
	go func() {
		defer close(d.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.run(ctx)
			case <-d.manualTrigger:
				d.logger.Info("manual dispatch triggered")
				d.run(ctx)
			case <-d.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	d.logger.Info("dispatcher started", logger.Duration("interval", d.interval))
	return nil
}

// Stop stops the dispatcher and waits for a running cycle to finish
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	if d.started.Load() {
		<-d.done
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	if _, err := d.runner.Dispatch(ctx); err != nil {
		d.logger.Error("dispatch cycle failed", logger.Error(err))
	}
}
