// Package correlator joins asynchronous validate responses to the requests
// the dispatcher sent. Each correlation ID is consumed at most once.
package correlator

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/yashkhare05/Uptime/internal/domain"
	"github.com/yashkhare05/Uptime/internal/protocol"
)

// DefaultSettledSize bounds how many consumed IDs are remembered for
// classifying late replies.
const DefaultSettledSize = 8192

var (
	// ErrUnknownCorrelation means no pending request matches the ID.
	ErrUnknownCorrelation = errors.New("unknown correlation id")
	// ErrDuplicateResponse means the ID was already answered.
	ErrDuplicateResponse = fmt.Errorf("%w: already resolved", ErrUnknownCorrelation)
	// ErrExpired means the ID was dropped by the expiry sweep.
	ErrExpired = fmt.Errorf("%w: expired", ErrUnknownCorrelation)
	// ErrDuplicateCorrelation means Register saw an ID that is still pending.
	ErrDuplicateCorrelation = errors.New("correlation id already pending")
)

// Continuation runs once for the request a response resolved.
type Continuation func(ctx context.Context, req domain.CheckRequest, resp protocol.ValidateResponse) error

type pending struct {
	req  domain.CheckRequest
	cont Continuation
}

type settledOutcome uint8

const (
	outcomeResolved settledOutcome = iota
	outcomeExpired
)

// Correlator tracks outstanding check requests by correlation ID.
type Correlator struct {
	entries cmap.ConcurrentMap[string, pending]
	settled *lru.Cache
	now     func() time.Time
}

// New creates a correlator remembering up to settledSize consumed IDs.
func New(settledSize int) (*Correlator, error) {
	if settledSize <= 0 {
		settledSize = DefaultSettledSize
	}
	settled, err := lru.New(settledSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create settled cache: %w", err)
	}
	return &Correlator{
		entries: cmap.New[pending](),
		settled: settled,
		now:     time.Now,
	}, nil
}

// Register stores req until a response resolves it or it expires.
// IssuedAt is stamped when the caller left it zero.
func (c *Correlator) Register(req domain.CheckRequest, cont Continuation) error {
	if req.CorrelationID == "" {
		return fmt.Errorf("register: empty correlation id")
	}
	if cont == nil {
		return fmt.Errorf("register %s: nil continuation", req.CorrelationID)
	}
	if req.IssuedAt.IsZero() {
		req.IssuedAt = c.now()
	}
	if !c.entries.SetIfAbsent(req.CorrelationID, pending{req: req, cont: cont}) {
		return fmt.Errorf("%w: %s", ErrDuplicateCorrelation, req.CorrelationID)
	}
	return nil
}

// Resolve removes the pending entry for id and runs its continuation.
// Concurrent or repeated calls for one id run the continuation at most once;
// the losers get an error wrapping ErrUnknownCorrelation.
func (c *Correlator) Resolve(ctx context.Context, id string, resp protocol.ValidateResponse) error {
	p, ok := c.entries.Pop(id)
	if !ok {
		if v, seen := c.settled.Get(id); seen {
			if v.(settledOutcome) == outcomeExpired {
				return fmt.Errorf("%w: %s", ErrExpired, id)
			}
			return fmt.Errorf("%w: %s", ErrDuplicateResponse, id)
		}
		return fmt.Errorf("%w: %s", ErrUnknownCorrelation, id)
	}
	c.settled.Add(id, outcomeResolved)
	return p.cont(ctx, p.req, resp)
}

// Lookup returns the pending request for id without consuming it.
func (c *Correlator) Lookup(id string) (domain.CheckRequest, bool) {
	p, ok := c.entries.Get(id)
	return p.req, ok
}

// Expire drops every entry issued before cutoff and returns them.
func (c *Correlator) Expire(cutoff time.Time) []domain.CheckRequest {
	var expired []domain.CheckRequest
	stale := func(_ string, p pending, exists bool) bool {
		return exists && p.req.IssuedAt.Before(cutoff)
	}

	for id, p := range c.entries.Items() {
		if !p.req.IssuedAt.Before(cutoff) {
			continue
		}
		if c.entries.RemoveCb(id, stale) {
			c.settled.Add(id, outcomeExpired)
			expired = append(expired, p.req)
		}
	}
	return expired
}

// Pending returns the number of outstanding requests.
func (c *Correlator) Pending() int {
	return c.entries.Count()
}
