package hub

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yashkhare05/Uptime/internal/domain"
	"github.com/yashkhare05/Uptime/internal/logger"
	"github.com/yashkhare05/Uptime/internal/protocol"
)

// DispatchStats summarizes one dispatch cycle.
type DispatchStats struct {
	Targets    int
	Validators int
	Sent       int
	Failed     int
}

// Dispatch sends one validate request per (active target, live session)
// pair. Each request is registered before it is sent so a fast reply always
// finds it. When a send fails the rest of that session's requests for this
// cycle are skipped; nothing is retried until the next cycle.
func (h *Hub) Dispatch(ctx context.Context) (DispatchStats, error) {
	start := time.Now()
	defer func() { h.metrics.DispatchDuration.Observe(time.Since(start).Seconds()) }()

	targets, err := h.store.ListActiveTargets(ctx)
	if err != nil {
		h.log.Error("failed to list active targets", logger.Error(err))
		return DispatchStats{}, fmt.Errorf("list active targets: %w", err)
	}
	sessions := h.registry.List()

	stats := DispatchStats{Targets: len(targets), Validators: len(sessions)}
	if len(targets) == 0 || len(sessions) == 0 {
		h.log.Debug("nothing to dispatch",
			logger.Int("targets", stats.Targets),
			logger.Int("validators", stats.Validators))
		return stats, nil
	}

	var sent, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(h.opts.DispatchConcurrency)
	for _, s := range sessions {
		s := s
		g.Go(func() error {
			n, err := h.dispatchTo(ctx, s, targets)
			sent.Add(int64(n))
			if err != nil {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.Sent = int(sent.Load())
	stats.Failed = int(failed.Load())
	h.metrics.PendingCorrelations.Set(float64(h.correlator.Pending()))
	h.log.Info("dispatch cycle complete",
		logger.Int("targets", stats.Targets),
		logger.Int("validators", stats.Validators),
		logger.Int("sent", stats.Sent),
		logger.Int("failed", stats.Failed),
		logger.Duration("took", time.Since(start)))
	return stats, nil
}

// dispatchTo sends every target to one session and returns how many were
// written before the first failure.
func (h *Hub) dispatchTo(ctx context.Context, s domain.Session, targets []domain.Target) (int, error) {
	sent := 0
	for _, t := range targets {
		id, err := uuid.NewV7()
		if err != nil {
			return sent, fmt.Errorf("correlation id: %w", err)
		}
		req := domain.CheckRequest{
			CorrelationID: id.String(),
			TargetID:      t.ID,
			TargetURL:     t.URL,
			ValidatorID:   s.ValidatorID,
			PublicKey:     s.PublicKey,
			ConnID:        s.Conn.ID(),
			IssuedAt:      h.now(),
		}
		if err := h.correlator.Register(req, h.ledger.Record); err != nil {
			h.log.Error("failed to register request", logger.CorrelationID(req.CorrelationID), logger.Error(err))
			continue
		}

		payload, err := protocol.Encode(protocol.ValidateRequest{URL: t.URL, CallbackID: req.CorrelationID})
		if err != nil {
			return sent, err
		}

		sendCtx, cancel := context.WithTimeout(ctx, h.opts.SendTimeout)
		err = s.Conn.Send(sendCtx, payload)
		cancel()
		if err != nil {
			h.metrics.SendFailures.Inc()
			h.log.Warn("failed to send validate request",
				logger.CorrelationID(req.CorrelationID),
				logger.ValidatorID(s.ValidatorID),
				logger.TargetID(t.ID),
				logger.ConnID(s.Conn.ID()),
				logger.Error(err))
			return sent, fmt.Errorf("%w to %s: %w", ErrDispatchSend, s.ValidatorID, err)
		}
		h.metrics.Dispatched.Inc()
		sent++
	}
	return sent, nil
}
