// Package redis implements store.Store on Redis. Validators are hashes,
// targets are JSON values indexed by a set, and ticks are capped lists per
// target. Multi-key writes run as Lua scripts so they apply atomically.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yashkhare05/Uptime/internal/domain"
	"github.com/yashkhare05/Uptime/internal/store"
)

// DefaultTickRetention caps each target's tick list.
const DefaultTickRetention = 10000

const (
	errValidatorMissing = "validator not found"
	errWrongType        = "unexpected value at"
)

// createValidator claims the public key index and writes the hash, or does
// nothing when the key is already claimed.
var createValidator = redis.NewScript(`
if redis.call('SETNX', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[2],
	'id', ARGV[1], 'publicKey', ARGV[2], 'ip', ARGV[3],
	'location', ARGV[4], 'pendingPayout', 0, 'createdAt', ARGV[5])
return 1
`)

// commitTick credits the validator and prepends the tick. Lua scripts do
// not roll back, so every check that could fail a write runs before the
// first write.
var commitTick = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return redis.error_reply('` + errValidatorMissing + `')
end
if redis.call('TYPE', KEYS[1]).ok ~= 'hash' then
	return redis.error_reply('` + errWrongType + ` ' .. KEYS[1])
end
local pending = redis.call('HGET', KEYS[1], 'pendingPayout')
if pending and not string.match(pending, '^-?%d+$') then
	return redis.error_reply('` + errWrongType + ` ' .. KEYS[1] .. ' pendingPayout')
end
local kind = redis.call('TYPE', KEYS[2]).ok
if kind ~= 'list' and kind ~= 'none' then
	return redis.error_reply('` + errWrongType + ` ' .. KEYS[2])
end
redis.call('HINCRBY', KEYS[1], 'pendingPayout', ARGV[1])
redis.call('LPUSH', KEYS[2], ARGV[2])
redis.call('LTRIM', KEYS[2], 0, tonumber(ARGV[3]) - 1)
return 1
`)

// Store handles Redis operations for validators, targets and ticks
type Store struct {
	client    *redis.Client
	retention int
}

var _ store.Store = (*Store)(nil)

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client:    client,
		retention: DefaultTickRetention,
	}
}

type validatorHash struct {
	ID            string `redis:"id"`
	PublicKey     string `redis:"publicKey"`
	NetworkOrigin string `redis:"ip"`
	Location      string `redis:"location"`
	PendingPayout int64  `redis:"pendingPayout"`
	CreatedAt     int64  `redis:"createdAt"`
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

// GetValidator retrieves a validator by ID
func (s *Store) GetValidator(ctx context.Context, id string) (*domain.Validator, error) {
	cmd := s.client.HGetAll(ctx, ValidatorKey(id))
	fields, err := cmd.Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get validator: %w", err)
	}
	if len(fields) == 0 {
		return nil, store.ErrNotFound
	}

	var h validatorHash
	if err := cmd.Scan(&h); err != nil {
		return nil, fmt.Errorf("failed to scan validator %s: %w", id, err)
	}
	return &domain.Validator{
		ID:            h.ID,
		PublicKey:     h.PublicKey,
		NetworkOrigin: h.NetworkOrigin,
		Location:      h.Location,
		PendingPayout: h.PendingPayout,
		CreatedAt:     time.UnixMilli(h.CreatedAt),
	}, nil
}

// FindValidatorByPublicKey follows the public key index to the validator
func (s *Store) FindValidatorByPublicKey(ctx context.Context, publicKey string) (*domain.Validator, error) {
	id, err := s.client.Get(ctx, ValidatorByKeyKey(publicKey)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up public key: %w", err)
	}
	return s.GetValidator(ctx, id)
}

// CreateValidator stores a new validator unless its public key is taken
func (s *Store) CreateValidator(ctx context.Context, v *domain.Validator) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	if v.Location == "" {
		v.Location = domain.UnknownLocation
	}

	created, err := createValidator.Run(ctx, s.client,
		[]string{ValidatorByKeyKey(v.PublicKey), ValidatorKey(v.ID)},
		v.ID, v.PublicKey, v.NetworkOrigin, v.Location, v.CreatedAt.UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to create validator: %w", err)
	}
	if created == 0 {
		return fmt.Errorf("validator with key %s: %w", v.PublicKey, store.ErrDuplicateKey)
	}
	return nil
}

// CommitTick records the tick and credits the validator atomically
func (s *Store) CommitTick(ctx context.Context, tick domain.Tick, payout int64) error {
	data, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("failed to marshal tick: %w", err)
	}

	err = commitTick.Run(ctx, s.client,
		[]string{ValidatorKey(tick.ValidatorID), TicksKey(tick.TargetID)},
		payout, data, s.retention,
	).Err()
	if err != nil {
		if strings.Contains(err.Error(), errValidatorMissing) {
			return fmt.Errorf("credit validator %s: %w", tick.ValidatorID, store.ErrNotFound)
		}
		return fmt.Errorf("failed to commit tick: %w", err)
	}
	return nil
}

// ListTicks returns up to limit ticks for a target, newest first
func (s *Store) ListTicks(ctx context.Context, targetID string, limit int) ([]domain.Tick, error) {
	if limit <= 0 {
		limit = 50
	}
	raw, err := s.client.LRange(ctx, TicksKey(targetID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list ticks: %w", err)
	}

	ticks := make([]domain.Tick, 0, len(raw))
	for _, item := range raw {
		var t domain.Tick
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tick: %w", err)
		}
		ticks = append(ticks, t)
	}
	return ticks, nil
}

// UpsertTargets stores targets (bulk operation)
func (s *Store) UpsertTargets(ctx context.Context, targets []domain.Target) error {
	if len(targets) == 0 {
		return nil
	}
	pipe := s.client.TxPipeline()

	for _, t := range targets {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now()
		}
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to marshal target %s: %w", t.ID, err)
		}
		pipe.Set(ctx, TargetKey(t.ID), data, 0)
		pipe.SAdd(ctx, AllTargetsKey(), t.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save targets: %w", err)
	}
	return nil
}

// ListActiveTargets retrieves every target that is not disabled
func (s *Store) ListActiveTargets(ctx context.Context) ([]domain.Target, error) {
	ids, err := s.client.SMembers(ctx, AllTargetsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get target IDs: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = TargetKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get targets: %w", err)
	}

	targets := make([]domain.Target, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			// set member without a value
			continue
		}
		var t domain.Target
		if err := json.Unmarshal([]byte(str), &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal target: %w", err)
		}
		if t.Active() {
			targets = append(targets, t)
		}
	}
	return targets, nil
}
