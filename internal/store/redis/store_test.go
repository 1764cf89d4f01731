package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashkhare05/Uptime/internal/domain"
	"github.com/yashkhare05/Uptime/internal/store"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "uptime:validator:v1", ValidatorKey("v1"))
	assert.Equal(t, "uptime:pubkey:abc", ValidatorByKeyKey("abc"))
	assert.Equal(t, "uptime:target:t1", TargetKey("t1"))
	assert.Equal(t, "uptime:ticks:t1", TicksKey("t1"))
	assert.Equal(t, "uptime:targets:all", AllTargetsKey())
}

// newLiveStore connects to UPTIME_TEST_REDIS_ADDR and uses a scratch DB.
func newLiveStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("UPTIME_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("UPTIME_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())
	require.NoError(t, client.FlushDB(ctx).Err())
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return NewStore(client)
}

func TestLiveValidatorLifecycle(t *testing.T) {
	s := newLiveStore(t)
	ctx := context.Background()

	v := &domain.Validator{ID: uuid.NewString(), PublicKey: "key-1", NetworkOrigin: "10.0.0.1"}
	require.NoError(t, s.CreateValidator(ctx, v))

	err := s.CreateValidator(ctx, &domain.Validator{ID: uuid.NewString(), PublicKey: "key-1"})
	require.ErrorIs(t, err, store.ErrDuplicateKey)

	got, err := s.FindValidatorByPublicKey(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)
	assert.Equal(t, domain.UnknownLocation, got.Location)

	_, err = s.FindValidatorByPublicKey(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestLiveCommitTick(t *testing.T) {
	s := newLiveStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertTargets(ctx, []domain.Target{
		{ID: "t1", URL: "https://example.com"},
		{ID: "t2", URL: "https://example.org", Disabled: true},
	}))
	targets, err := s.ListActiveTargets(ctx)
	require.NoError(t, err)
	require.Len(t, targets, 1)

	require.NoError(t, s.CreateValidator(ctx, &domain.Validator{ID: "v1", PublicKey: "key-1"}))
	tick := domain.Tick{ID: "x", TargetID: "t1", ValidatorID: "v1", Status: domain.StatusGood, LatencyMs: 42, ObservedAt: time.Now()}
	require.NoError(t, s.CommitTick(ctx, tick, 100))

	err = s.CommitTick(ctx, domain.Tick{ID: "y", TargetID: "t1", ValidatorID: "ghost", Status: domain.StatusBad}, 100)
	require.ErrorIs(t, err, store.ErrNotFound)

	v, err := s.GetValidator(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), v.PendingPayout)

	ticks, err := s.ListTicks(ctx, "t1", 10)
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, "x", ticks[0].ID)
	assert.Equal(t, int64(42), ticks[0].LatencyMs)
}

func TestLiveCommitTickWritesNothingOnWrongType(t *testing.T) {
	s := newLiveStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateValidator(ctx, &domain.Validator{ID: "v1", PublicKey: "key-1"}))
	require.NoError(t, s.client.Set(ctx, TicksKey("t1"), "not a list", 0).Err())

	tick := domain.Tick{ID: "x", TargetID: "t1", ValidatorID: "v1", Status: domain.StatusGood, ObservedAt: time.Now()}
	err := s.CommitTick(ctx, tick, 100)
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrNotFound)

	v, err := s.GetValidator(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v.PendingPayout, "payout must not move without the tick")

	require.NoError(t, s.client.HSet(ctx, ValidatorKey("v1"), "pendingPayout", "lots").Err())
	require.NoError(t, s.client.Del(ctx, TicksKey("t1")).Err())
	require.Error(t, s.CommitTick(ctx, tick, 100))
	n, err := s.client.LLen(ctx, TicksKey("t1")).Result()
	require.NoError(t, err)
	assert.Zero(t, n, "tick must not land without the payout")
}
