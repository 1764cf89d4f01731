// Package sqlstore implements store.Store on database/sql, backed by SQLite
// (modernc.org/sqlite) or PostgreSQL (lib/pq).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/yashkhare05/Uptime/internal/domain"
	"github.com/yashkhare05/Uptime/internal/store"
)

// Dialect selects the SQL driver.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

const schema = `
CREATE TABLE IF NOT EXISTS validators (
	id             TEXT PRIMARY KEY,
	public_key     TEXT NOT NULL UNIQUE,
	ip             TEXT NOT NULL DEFAULT '',
	location       TEXT NOT NULL DEFAULT 'unknown',
	pending_payout BIGINT NOT NULL DEFAULT 0,
	created_at     BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS targets (
	id         TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	disabled   BOOLEAN NOT NULL DEFAULT FALSE,
	created_at BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS ticks (
	id           TEXT PRIMARY KEY,
	target_id    TEXT NOT NULL REFERENCES targets (id),
	validator_id TEXT NOT NULL REFERENCES validators (id),
	status       TEXT NOT NULL,
	latency_ms   BIGINT NOT NULL,
	observed_at  BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ticks_target_observed ON ticks (target_id, observed_at);
`

// Store is a SQL backed store.Store.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ store.Store = (*Store)(nil)

// Open prepares a handle for dsn. No connection is made until Ping or
// Migrate.
func Open(dialect Dialect, dsn string) (*Store, error) {
	var driver string
	switch dialect {
	case SQLite:
		driver = "sqlite"
		if !strings.Contains(dsn, "_pragma=") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + sqlitePragmas
		}
	case Postgres:
		driver = "postgres"
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == SQLite {
		// one writer keeps the tick transaction free of SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}

	return &Store{db: db, dialect: dialect}, nil
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// DB exposes the handle for tests and tooling.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

// rebind rewrites ? placeholders into $n for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *Store) ListActiveTargets(ctx context.Context) ([]domain.Target, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, url, disabled, created_at FROM targets WHERE NOT disabled ORDER BY id`))
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []domain.Target
	for rows.Next() {
		var t domain.Target
		var created int64
		if err := rows.Scan(&t.ID, &t.URL, &t.Disabled, &created); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		t.CreatedAt = time.UnixMilli(created)
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

func (s *Store) UpsertTargets(ctx context.Context, targets []domain.Target) error {
	if len(targets) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := s.rebind(`INSERT INTO targets (id, url, disabled, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET url = excluded.url, disabled = excluded.disabled`)
	for _, t := range targets {
		created := t.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		if _, err := tx.ExecContext(ctx, q, t.ID, t.URL, t.Disabled, created.UnixMilli()); err != nil {
			return fmt.Errorf("failed to upsert target %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

const validatorColumns = `id, public_key, ip, location, pending_payout, created_at`

func scanValidator(row *sql.Row) (*domain.Validator, error) {
	var v domain.Validator
	var created int64
	err := row.Scan(&v.ID, &v.PublicKey, &v.NetworkOrigin, &v.Location, &v.PendingPayout, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan validator: %w", err)
	}
	v.CreatedAt = time.UnixMilli(created)
	return &v, nil
}

func (s *Store) FindValidatorByPublicKey(ctx context.Context, publicKey string) (*domain.Validator, error) {
	return scanValidator(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+validatorColumns+` FROM validators WHERE public_key = ?`), publicKey))
}

func (s *Store) GetValidator(ctx context.Context, id string) (*domain.Validator, error) {
	return scanValidator(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+validatorColumns+` FROM validators WHERE id = ?`), id))
}

func (s *Store) CreateValidator(ctx context.Context, v *domain.Validator) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	if v.Location == "" {
		v.Location = domain.UnknownLocation
	}
	res, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO validators (`+validatorColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (public_key) DO NOTHING`),
		v.ID, v.PublicKey, v.NetworkOrigin, v.Location, v.PendingPayout, v.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to create validator: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create validator: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("validator with key %s: %w", v.PublicKey, store.ErrDuplicateKey)
	}
	return nil
}

// CommitTick inserts the tick and credits the validator in one transaction.
func (s *Store) CommitTick(ctx context.Context, tick domain.Tick, payout int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO ticks (id, target_id, validator_id, status, latency_ms, observed_at) VALUES (?, ?, ?, ?, ?, ?)`),
		tick.ID, tick.TargetID, tick.ValidatorID, tick.Status.String(), tick.LatencyMs, tick.ObservedAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("failed to insert tick: %w", err)
	}

	res, err := tx.ExecContext(ctx, s.rebind(
		`UPDATE validators SET pending_payout = pending_payout + ? WHERE id = ?`), payout, tick.ValidatorID)
	if err != nil {
		return fmt.Errorf("failed to credit validator: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to credit validator: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("credit validator %s: %w", tick.ValidatorID, store.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tick: %w", err)
	}
	return nil
}

func (s *Store) ListTicks(ctx context.Context, targetID string, limit int) ([]domain.Tick, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, target_id, validator_id, status, latency_ms, observed_at FROM ticks
		WHERE target_id = ? ORDER BY observed_at DESC, id DESC LIMIT ?`), targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ticks: %w", err)
	}
	defer rows.Close()

	ticks := []domain.Tick{}
	for rows.Next() {
		var t domain.Tick
		var status string
		var observed int64
		if err := rows.Scan(&t.ID, &t.TargetID, &t.ValidatorID, &status, &t.LatencyMs, &observed); err != nil {
			return nil, fmt.Errorf("failed to scan tick: %w", err)
		}
		if t.Status, err = domain.ParseStatus(status); err != nil {
			return nil, fmt.Errorf("tick %s: %w", t.ID, err)
		}
		t.ObservedAt = time.UnixMilli(observed)
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}
