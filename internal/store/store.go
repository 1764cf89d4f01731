// Package store defines the durable storage contract the hub depends on.
// Implementations live in store/sqlstore (SQLite, PostgreSQL) and
// store/redis.
package store

import (
	"context"
	"errors"

	"github.com/yashkhare05/Uptime/internal/domain"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicateKey is returned when a unique key is already taken
	ErrDuplicateKey = errors.New("duplicate")
)

// Targets is the read side of the monitored target collaborator.
type Targets interface {
	ListActiveTargets(ctx context.Context) ([]domain.Target, error)
}

// Validators persists validator identities.
type Validators interface {
	FindValidatorByPublicKey(ctx context.Context, publicKey string) (*domain.Validator, error)
	GetValidator(ctx context.Context, id string) (*domain.Validator, error)
	// CreateValidator returns ErrDuplicateKey if the public key is taken.
	CreateValidator(ctx context.Context, v *domain.Validator) error
}

// TickCommitter records a tick and credits the validator in one atomic unit:
// either both writes are visible afterwards or neither is.
type TickCommitter interface {
	CommitTick(ctx context.Context, tick domain.Tick, payout int64) error
}

// Store is everything the process needs from its backend.
type Store interface {
	Targets
	Validators
	TickCommitter

	// UpsertTargets inserts or updates targets by ID.
	UpsertTargets(ctx context.Context, targets []domain.Target) error
	// ListTicks returns the newest ticks of a target first.
	ListTicks(ctx context.Context, targetID string, limit int) ([]domain.Tick, error)

	Ping(ctx context.Context) error
	Close() error
}
