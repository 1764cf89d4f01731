// Package hub coordinates validators: it enrolls them, fans validate
// requests out to them, and routes their replies to the ledger.
//
// All shared state (the registry of live sessions and the table of pending
// requests) is owned by one Hub value created at process start.
package hub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yashkhare05/Uptime/internal/correlator"
	"github.com/yashkhare05/Uptime/internal/domain"
	"github.com/yashkhare05/Uptime/internal/identity"
	"github.com/yashkhare05/Uptime/internal/ledger"
	"github.com/yashkhare05/Uptime/internal/logger"
	"github.com/yashkhare05/Uptime/internal/metrics"
	"github.com/yashkhare05/Uptime/internal/protocol"
	"github.com/yashkhare05/Uptime/internal/registry"
	"github.com/yashkhare05/Uptime/internal/store"
)

var (
	// ErrDispatchSend means a validate request could not be written to a
	// validator's connection. The pending entry stays until it expires.
	ErrDispatchSend = errors.New("failed to send validate request")
	// ErrSignupRejected means the signup challenge did not verify.
	ErrSignupRejected = errors.New("signup signature rejected")
	// ErrConnGone means the connection closed before its signup completed.
	ErrConnGone = errors.New("connection closed during signup")
)

// Store is what the hub needs from durable storage.
type Store interface {
	store.Targets
	store.Validators
	store.TickCommitter
}

// Options tunes the hub. Zero values fall back to defaults.
type Options struct {
	DispatchConcurrency int           // sessions sent to in parallel per cycle
	SendTimeout         time.Duration // per message write deadline
	CorrelationTTL      time.Duration // pending requests older than this expire
	Payout              int64         // credited per committed tick
	SettledSize         int           // consumed IDs remembered for late replies
}

func (o Options) withDefaults() Options {
	if o.DispatchConcurrency <= 0 {
		o.DispatchConcurrency = 16
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 5 * time.Second
	}
	if o.CorrelationTTL <= 0 {
		o.CorrelationTTL = 30 * time.Second
	}
	if o.Payout <= 0 {
		o.Payout = ledger.DefaultPayout
	}
	return o
}

type Hub struct {
	opts       Options
	store      Store
	verifier   identity.Verifier
	registry   *registry.Registry
	correlator *correlator.Correlator
	ledger     *ledger.Ledger
	log        logger.Logger
	metrics    *metrics.Metrics

	now func() time.Time
}

// New creates a hub with an empty registry and no pending requests.
func New(st Store, verifier identity.Verifier, opts Options, log logger.Logger, m *metrics.Metrics) (*Hub, error) {
	opts = opts.withDefaults()

	corr, err := correlator.New(opts.SettledSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create correlator: %w", err)
	}

	return &Hub{
		opts:       opts,
		store:      st,
		verifier:   verifier,
		registry:   registry.New(),
		correlator: corr,
		ledger:     ledger.New(st, verifier, opts.Payout, log.With(logger.String("component", "ledger")), m),
		log:        log,
		metrics:    m,
		now:        time.Now,
	}, nil
}

// HandleMessage decodes one inbound frame from conn and routes it.
// Every failure is logged here; the returned error is informational and
// must never be relayed to the validator.
func (h *Hub) HandleMessage(ctx context.Context, conn domain.Conn, raw []byte) error {
	msg, err := protocol.DecodeInbound(raw)
	if err != nil {
		h.metrics.Responses.WithLabelValues(metrics.OutcomeMalformed).Inc()
		h.log.Warn("dropping malformed message", logger.ConnID(conn.ID()), logger.Error(err))
		return err
	}

	switch m := msg.(type) {
	case protocol.SignupRequest:
		_, err = h.Enroll(ctx, conn, m)
	case protocol.ValidateResponse:
		err = h.HandleValidate(ctx, conn, m)
	default:
		err = fmt.Errorf("%w: %T", protocol.ErrUnknownKind, msg)
	}
	return err
}

// HandleValidate resolves a validate response against its pending request.
// Stale, duplicate and expired replies are dropped.
func (h *Hub) HandleValidate(ctx context.Context, conn domain.Conn, resp protocol.ValidateResponse) error {
	err := h.correlator.Resolve(ctx, resp.CallbackID, resp)
	h.metrics.PendingCorrelations.Set(float64(h.correlator.Pending()))
	if err == nil {
		return nil
	}

	log := h.log.With(logger.CorrelationID(resp.CallbackID), logger.ConnID(conn.ID()))
	switch {
	case errors.Is(err, correlator.ErrExpired):
		h.metrics.Responses.WithLabelValues(metrics.OutcomeExpired).Inc()
		log.Info("dropping reply to expired request")
	case errors.Is(err, correlator.ErrDuplicateResponse):
		h.metrics.Responses.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		log.Warn("dropping duplicate reply")
	case errors.Is(err, correlator.ErrUnknownCorrelation):
		h.metrics.Responses.WithLabelValues(metrics.OutcomeUnknown).Inc()
		log.Warn("dropping reply with unknown correlation id")
	}
	// ledger failures are logged by the ledger
	return err
}

// Disconnect removes the session bound to conn. Requests already sent to it
// stay pending until they expire.
func (h *Hub) Disconnect(conn domain.Conn) {
	removed := h.registry.Remove(conn.ID())
	h.metrics.ConnectedValidators.Set(float64(h.registry.Count()))
	if removed != nil {
		h.log.Info("validator disconnected",
			logger.ValidatorID(removed.ValidatorID),
			logger.ConnID(conn.ID()))
	}
}

// ExpirePending drops requests issued more than CorrelationTTL ago and
// returns how many were dropped.
func (h *Hub) ExpirePending() int {
	expired := h.correlator.Expire(h.now().Add(-h.opts.CorrelationTTL))
	h.metrics.PendingCorrelations.Set(float64(h.correlator.Pending()))
	if len(expired) == 0 {
		return 0
	}

	h.metrics.Expired.Add(float64(len(expired)))
	for _, req := range expired {
		h.log.Debug("validate request expired without reply",
			logger.CorrelationID(req.CorrelationID),
			logger.ValidatorID(req.ValidatorID),
			logger.TargetID(req.TargetID))
	}
	h.log.Info("expired pending requests", logger.Int("count", len(expired)))
	return len(expired)
}

// Sessions returns a snapshot of the live sessions.
func (h *Hub) Sessions() []domain.Session { return h.registry.List() }

// ConnectedValidators returns the number of live sessions.
func (h *Hub) ConnectedValidators() int { return h.registry.Count() }

// PendingChecks returns the number of requests awaiting a reply.
func (h *Hub) PendingChecks() int { return h.correlator.Pending() }
