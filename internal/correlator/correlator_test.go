package correlator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yashkhare05/Uptime/internal/domain"
	"github.com/yashkhare05/Uptime/internal/protocol"
)

func newCorrelator(t *testing.T) *Correlator {
	t.Helper()
	c, err := New(0)
	require.NoError(t, err)
	return c
}

func TestResolveRunsContinuationOnce(t *testing.T) {
	c := newCorrelator(t)

	var calls int32
	var got domain.CheckRequest
	err := c.Register(domain.CheckRequest{CorrelationID: "id-1", ValidatorID: "v1"},
		func(_ context.Context, req domain.CheckRequest, resp protocol.ValidateResponse) error {
			atomic.AddInt32(&calls, 1)
			got = req
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, 1, c.Pending())

	require.NoError(t, c.Resolve(context.Background(), "id-1", protocol.ValidateResponse{CallbackID: "id-1"}))
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
	require.Equal(t, "v1", got.ValidatorID)
	require.False(t, got.IssuedAt.IsZero(), "IssuedAt should be stamped")
	require.Equal(t, 0, c.Pending())

	err = c.Resolve(context.Background(), "id-1", protocol.ValidateResponse{CallbackID: "id-1"})
	require.ErrorIs(t, err, ErrDuplicateResponse)
	require.ErrorIs(t, err, ErrUnknownCorrelation)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestResolveUnknown(t *testing.T) {
	c := newCorrelator(t)
	err := c.Resolve(context.Background(), "never-issued", protocol.ValidateResponse{})
	require.ErrorIs(t, err, ErrUnknownCorrelation)
	require.False(t, errors.Is(err, ErrDuplicateResponse))
}

func TestResolvePropagatesContinuationError(t *testing.T) {
	c := newCorrelator(t)
	boom := errors.New("boom")
	require.NoError(t, c.Register(domain.CheckRequest{CorrelationID: "x"},
		func(context.Context, domain.CheckRequest, protocol.ValidateResponse) error { return boom }))

	require.ErrorIs(t, c.Resolve(context.Background(), "x", protocol.ValidateResponse{}), boom)
	// The entry is consumed even when the continuation fails.
	require.ErrorIs(t, c.Resolve(context.Background(), "x", protocol.ValidateResponse{}), ErrDuplicateResponse)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	c := newCorrelator(t)
	noop := func(context.Context, domain.CheckRequest, protocol.ValidateResponse) error { return nil }

	require.NoError(t, c.Register(domain.CheckRequest{CorrelationID: "dup"}, noop))
	require.ErrorIs(t, c.Register(domain.CheckRequest{CorrelationID: "dup"}, noop), ErrDuplicateCorrelation)
	require.Error(t, c.Register(domain.CheckRequest{}, noop))
	require.Error(t, c.Register(domain.CheckRequest{CorrelationID: "nil-cont"}, nil))
}

func TestConcurrentResolveAtMostOnce(t *testing.T) {
	c := newCorrelator(t)

	const ids = 20
	const racers = 8
	var calls [ids]int32

	for i := 0; i < ids; i++ {
		i := i
		require.NoError(t, c.Register(domain.CheckRequest{CorrelationID: fmt.Sprintf("id-%d", i)},
			func(context.Context, domain.CheckRequest, protocol.ValidateResponse) error {
				atomic.AddInt32(&calls[i], 1)
				return nil
			}))
	}

	var wg sync.WaitGroup
	var unknown int32
	for i := 0; i < ids; i++ {
		for r := 0; r < racers; r++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if err := c.Resolve(context.Background(), id, protocol.ValidateResponse{}); errors.Is(err, ErrUnknownCorrelation) {
					atomic.AddInt32(&unknown, 1)
				}
			}(fmt.Sprintf("id-%d", i))
		}
	}
	wg.Wait()

	for i := range calls {
		require.Equal(t, int32(1), calls[i], "id-%d", i)
	}
	require.Equal(t, int32(ids*(racers-1)), unknown)
}

func TestExpire(t *testing.T) {
	c := newCorrelator(t)
	noop := func(context.Context, domain.CheckRequest, protocol.ValidateResponse) error { return nil }
	now := time.Now()

	require.NoError(t, c.Register(domain.CheckRequest{CorrelationID: "old", IssuedAt: now.Add(-time.Minute)}, noop))
	require.NoError(t, c.Register(domain.CheckRequest{CorrelationID: "fresh", IssuedAt: now}, noop))

	expired := c.Expire(now.Add(-30 * time.Second))
	require.Len(t, expired, 1)
	require.Equal(t, "old", expired[0].CorrelationID)
	require.Equal(t, 1, c.Pending())

	_, ok := c.Lookup("fresh")
	require.True(t, ok)

	err := c.Resolve(context.Background(), "old", protocol.ValidateResponse{})
	require.ErrorIs(t, err, ErrExpired)
	require.ErrorIs(t, err, ErrUnknownCorrelation)

	require.NoError(t, c.Resolve(context.Background(), "fresh", protocol.ValidateResponse{}))
}
