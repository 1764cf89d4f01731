package hub

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/yashkhare05/Uptime/internal/domain"
	"github.com/yashkhare05/Uptime/internal/logger"
	"github.com/yashkhare05/Uptime/internal/metrics"
	"github.com/yashkhare05/Uptime/internal/protocol"
	"github.com/yashkhare05/Uptime/internal/store"
	"github.com/yashkhare05/Uptime/internal/utils"
)

// Enroll verifies a signup challenge, finds or creates the durable validator
// and binds conn to it. A rejected signature gets no reply at all.
func (h *Hub) Enroll(ctx context.Context, conn domain.Conn, msg protocol.SignupRequest) (*domain.Validator, error) {
	log := h.log.With(logger.ConnID(conn.ID()), logger.String("public_key", msg.PublicKey))

	challenge := []byte(protocol.SignupChallenge(msg.CallbackID, msg.PublicKey))
	if !h.verifier.Verify(challenge, msg.PublicKey, string(msg.SignedMessage)) {
		h.metrics.Enrollments.WithLabelValues(metrics.EnrollRejected).Inc()
		log.Warn("signup signature rejected")
		return nil, ErrSignupRejected
	}

	v, err := h.findOrCreateValidator(ctx, msg, conn)
	if err != nil {
		h.metrics.Enrollments.WithLabelValues(metrics.EnrollFailed).Inc()
		log.Error("failed to load validator", logger.Error(err))
		return nil, err
	}
	log = log.With(logger.ValidatorID(v.ID))

	if connClosed(conn) {
		h.metrics.Enrollments.WithLabelValues(metrics.EnrollFailed).Inc()
		log.Info("connection closed during signup")
		return v, ErrConnGone
	}

	evicted := h.registry.Add(domain.Session{
		ValidatorID: v.ID,
		PublicKey:   v.PublicKey,
		Conn:        conn,
		JoinedAt:    h.now(),
	})
	h.metrics.ConnectedValidators.Set(float64(h.registry.Count()))
	if evicted != nil {
		log.Info("replaced older session for the same key", logger.String("evicted_conn_id", evicted.Conn.ID()))
		_ = evicted.Conn.Close()
	}

	// conn may have closed between the check above and the Add, in which
	// case its Disconnect already ran and missed this session
	if connClosed(conn) {
		h.Disconnect(conn)
		h.metrics.Enrollments.WithLabelValues(metrics.EnrollFailed).Inc()
		log.Info("connection closed during signup")
		return v, ErrConnGone
	}

	ack, err := protocol.Encode(protocol.SignupAck{ValidatorID: v.ID, CallbackID: msg.CallbackID})
	if err != nil {
		return nil, err
	}
	sendCtx, cancel := context.WithTimeout(ctx, h.opts.SendTimeout)
	defer cancel()
	if err := conn.Send(sendCtx, ack); err != nil {
		// the session stays registered; the next dispatch will find out
		log.Warn("failed to send signup ack", logger.Error(err))
		return v, fmt.Errorf("send signup ack: %w", err)
	}

	h.metrics.Enrollments.WithLabelValues(metrics.EnrollAccepted).Inc()
	log.Info("validator enrolled", logger.Int("connected", h.registry.Count()))
	return v, nil
}

func (h *Hub) findOrCreateValidator(ctx context.Context, msg protocol.SignupRequest, conn domain.Conn) (*domain.Validator, error) {
	v, err := h.store.FindValidatorByPublicKey(ctx, msg.PublicKey)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	origin := msg.IP
	if origin == "" {
		origin = utils.ParseHostNoPort(conn.RemoteAddr())
	}
	v = &domain.Validator{
		ID:            uuid.NewString(),
		PublicKey:     msg.PublicKey,
		NetworkOrigin: origin,
		Location:      domain.UnknownLocation,
		CreatedAt:     h.now(),
	}
	err = h.store.CreateValidator(ctx, v)
	if errors.Is(err, store.ErrDuplicateKey) {
		// another connection enrolled the same key first
		return h.store.FindValidatorByPublicKey(ctx, msg.PublicKey)
	}
	if err != nil {
		return nil, err
	}
	h.log.Info("created validator", logger.ValidatorID(v.ID), logger.String("ip", origin))
	return v, nil
}

func connClosed(conn domain.Conn) bool {
	select {
	case <-conn.Done():
		return true
	default:
		return false
	}
}
