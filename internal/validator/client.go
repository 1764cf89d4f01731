// Package validator is a reference validator node: it enrolls with a hub,
// probes the URLs the hub asks about and answers with signed verdicts.
package validator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yashkhare05/Uptime/internal/domain"
	"github.com/yashkhare05/Uptime/internal/identity"
	"github.com/yashkhare05/Uptime/internal/logger"
	"github.com/yashkhare05/Uptime/internal/protocol"
	"github.com/yashkhare05/Uptime/internal/utils"
	"github.com/yashkhare05/Uptime/internal/wsconn"
)

// ErrSignupTimeout means the hub never acknowledged the signup.
var ErrSignupTimeout = errors.New("signup not acknowledged")

// Config of a validator node. Zero durations fall back to defaults.
type Config struct {
	HubURL        string // ws:// or wss:// endpoint of the hub
	IP            string // reported at signup; empty lets the hub use the socket address
	ProbeTimeout  time.Duration
	SignupTimeout time.Duration
	ReconnectMin  time.Duration
	ReconnectMax  time.Duration
	Conn          wsconn.Options
}

func (c Config) withDefaults() Config {
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 10 * time.Second
	}
	if c.SignupTimeout <= 0 {
		c.SignupTimeout = 10 * time.Second
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = time.Second
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = time.Minute
	}
	return c
}

type Client struct {
	cfg     Config
	keypair *identity.Keypair
	http    *http.Client
	log     logger.Logger

	mu          sync.Mutex
	validatorID string
	callbackID  string        // pending signup
	acked       chan struct{} // closed on the matching ack
}

func New(cfg Config, kp *identity.Keypair, log logger.Logger) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:     cfg,
		keypair: kp,
		http:    &http.Client{Timeout: cfg.ProbeTimeout},
		log:     log.With(logger.String("public_key", kp.PublicKey())),
	}
}

// ValidatorID returns the id assigned by the hub, or "" before the first ack.
func (c *Client) ValidatorID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validatorID
}

// Run keeps a session with the hub open until ctx is cancelled,
// reconnecting with exponential backoff. The backoff resets once a session
// got its signup acknowledged.
func (c *Client) Run(ctx context.Context) error {
	wait := c.cfg.ReconnectMin
	for {
		enrolled, err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if enrolled {
			wait = c.cfg.ReconnectMin
		}
		c.log.Warn("hub session ended, reconnecting",
			logger.Duration("backoff", wait),
			logger.Error(err))

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil
		}
		wait = nextBackoff(wait, c.cfg.ReconnectMax)
	}
}

func nextBackoff(cur, limit time.Duration) time.Duration {
	if next := cur * 2; next < limit {
		return next
	}
	return limit
}

// session runs one connection to the hub. It reports whether the signup
// was acknowledged before the connection ended.
func (c *Client) session(ctx context.Context) (bool, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.HubURL, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", c.cfg.HubURL, err)
	}
	conn := wsconn.New(ws, c.cfg.HubURL, c.cfg.Conn)
	c.log.Info("connected to hub", logger.String("hub", c.cfg.HubURL))

	acked, err := c.signup(ctx, conn)
	if err != nil {
		utils.Close(conn)
		return false, err
	}

	// Close the session if the hub stays silent about the signup
	timer := time.AfterFunc(c.cfg.SignupTimeout, func() {
		select {
		case <-acked:
		default:
			c.log.Warn("signup not acknowledged, closing connection",
				logger.Duration("timeout", c.cfg.SignupTimeout))
			_ = conn.Close()
		}
	})
	defer timer.Stop()

	serveErr := conn.Serve(ctx, c, c.log)

	select {
	case <-acked:
		return true, serveErr
	default:
		if serveErr == nil {
			serveErr = ErrSignupTimeout
		}
		return false, serveErr
	}
}

func (c *Client) signup(ctx context.Context, conn *wsconn.Conn) (<-chan struct{}, error) {
	callbackID := uuid.NewString()
	acked := make(chan struct{})

	c.mu.Lock()
	c.callbackID = callbackID
	c.acked = acked
	c.mu.Unlock()

	pk := c.keypair.PublicKey()
	raw, err := protocol.Encode(protocol.SignupRequest{
		IP:            c.cfg.IP,
		PublicKey:     pk,
		CallbackID:    callbackID,
		SignedMessage: protocol.Signature(c.keypair.Sign([]byte(protocol.SignupChallenge(callbackID, pk)))),
	})
	if err != nil {
		return nil, err
	}
	if err := conn.Send(ctx, raw); err != nil {
		return nil, fmt.Errorf("send signup: %w", err)
	}
	return acked, nil
}

// HandleMessage handles one frame from the hub.
func (c *Client) HandleMessage(ctx context.Context, conn domain.Conn, raw []byte) error {
	msg, err := protocol.DecodeFromHub(raw)
	if err != nil {
		c.log.Warn("dropping malformed frame from hub", logger.Error(err))
		return err
	}

	switch m := msg.(type) {
	case protocol.SignupAck:
		c.handleAck(m)
		return nil
	case protocol.ValidateRequest:
		return c.handleValidate(ctx, conn, m)
	default:
		return fmt.Errorf("%w: %T", protocol.ErrUnknownKind, msg)
	}
}

// Disconnect is called once the connection is gone.
func (c *Client) Disconnect(conn domain.Conn) {
	c.log.Info("disconnected from hub", logger.ConnID(conn.ID()))
}

func (c *Client) handleAck(ack protocol.SignupAck) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ack.CallbackID != c.callbackID || c.acked == nil {
		c.log.Warn("ignoring ack for another signup", logger.String("callback_id", ack.CallbackID))
		return
	}
	c.validatorID = ack.ValidatorID
	close(c.acked)
	c.acked = nil
	c.log.Info("signed up with hub", logger.ValidatorID(ack.ValidatorID))
}

func (c *Client) handleValidate(ctx context.Context, conn domain.Conn, req protocol.ValidateRequest) error {
	status, latency := c.Probe(ctx, req.URL)

	raw, err := protocol.Encode(protocol.ValidateResponse{
		CallbackID:    req.CallbackID,
		ValidatorID:   c.ValidatorID(),
		Status:        status,
		LatencyMs:     latency,
		SignedMessage: protocol.Signature(c.keypair.Sign([]byte(protocol.ReplyChallenge(req.CallbackID)))),
	})
	if err != nil {
		return err
	}
	if err := conn.Send(ctx, raw); err != nil {
		c.log.Warn("failed to send verdict", logger.CorrelationID(req.CallbackID), logger.Error(err))
		return err
	}

	c.log.Debug("verdict sent",
		logger.CorrelationID(req.CallbackID),
		logger.String("url", req.URL),
		logger.String("status", status.String()),
		logger.Int64("latency_ms", latency))
	return nil
}

// Probe fetches url once. The target is good when the request completes
// with a status below 400. Latency covers the full exchange in milliseconds.
func (c *Client) Probe(ctx context.Context, url string) (domain.Status, int64) {
	start := time.Now()
	status := c.fetch(ctx, url)
	return status, time.Since(start).Milliseconds()
}

func (c *Client) fetch(ctx context.Context, url string) domain.Status {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.StatusBad
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.StatusBad
	}
	defer utils.MustClose(resp.Body, "probe response body", c.log)
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= http.StatusBadRequest {
		return domain.StatusBad
	}
	return domain.StatusGood
}
