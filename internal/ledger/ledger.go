// Package ledger turns an authenticated validate response into a committed
// tick and a payout credit.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yashkhare05/Uptime/internal/domain"
	"github.com/yashkhare05/Uptime/internal/identity"
	"github.com/yashkhare05/Uptime/internal/logger"
	"github.com/yashkhare05/Uptime/internal/metrics"
	"github.com/yashkhare05/Uptime/internal/protocol"
	"github.com/yashkhare05/Uptime/internal/store"
)

// DefaultPayout is credited per committed tick.
const DefaultPayout int64 = 100

var (
	// ErrAuthentication means the reply signature did not verify under the
	// key captured at dispatch. Nothing was written.
	ErrAuthentication = errors.New("reply signature rejected")
	// ErrPersistence means the atomic write failed. Nothing was written.
	ErrPersistence = errors.New("failed to persist tick")
)

// Ledger records validate results.
type Ledger struct {
	store    store.TickCommitter
	verifier identity.Verifier
	payout   int64
	log      logger.Logger
	metrics  *metrics.Metrics

	now   func() time.Time
	newID func() string
}

// New creates a Ledger crediting payout per tick. A non-positive payout
// falls back to DefaultPayout.
func New(st store.TickCommitter, verifier identity.Verifier, payout int64, log logger.Logger, m *metrics.Metrics) *Ledger {
	if payout <= 0 {
		payout = DefaultPayout
	}
	return &Ledger{
		store:    st,
		verifier: verifier,
		payout:   payout,
		log:      log,
		metrics:  m,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Record verifies resp against the public key captured in req and, when it
// holds, commits one tick for req.ValidatorID together with the payout.
// The validator ID in resp is never trusted for crediting.
func (l *Ledger) Record(ctx context.Context, req domain.CheckRequest, resp protocol.ValidateResponse) error {
	log := l.log.With(
		logger.CorrelationID(req.CorrelationID),
		logger.ValidatorID(req.ValidatorID),
		logger.TargetID(req.TargetID),
	)

	challenge := []byte(protocol.ReplyChallenge(req.CorrelationID))
	if !l.verifier.Verify(challenge, req.PublicKey, string(resp.SignedMessage)) {
		l.metrics.Responses.WithLabelValues(metrics.OutcomeAuthFailed).Inc()
		log.Warn("validate response failed signature check")
		return fmt.Errorf("%w: correlation %s", ErrAuthentication, req.CorrelationID)
	}

	if resp.ValidatorID != "" && resp.ValidatorID != req.ValidatorID {
		log.Info("self-reported validator id differs from dispatch recipient",
			logger.String("reported_validator_id", resp.ValidatorID))
	}

	tick := domain.Tick{
		ID:          l.newID(),
		TargetID:    req.TargetID,
		ValidatorID: req.ValidatorID,
		Status:      resp.Status,
		LatencyMs:   resp.LatencyMs,
		ObservedAt:  l.now(),
	}

	start := time.Now()
	err := l.store.CommitTick(ctx, tick, l.payout)
	l.metrics.CommitLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		l.metrics.Responses.WithLabelValues(metrics.OutcomePersistFailed).Inc()
		log.Error("failed to commit tick", logger.Error(err))
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	l.metrics.Responses.WithLabelValues(metrics.OutcomeCommitted).Inc()
	log.Debug("tick committed",
		logger.String("tick_id", tick.ID),
		logger.String("status", tick.Status.String()),
		logger.Int64("latency_ms", tick.LatencyMs))
	return nil
}
