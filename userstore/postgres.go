package userstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	bootpractice "github.com/Kascald/bootPractice-2"
)

var (
	_ bootpractice.UserProvider    = (*PostgresStore)(nil)
	_ bootpractice.PasswordUpdater = (*PostgresStore)(nil)
)

const uniqueViolation = "23505"

// Config describes the pgx pool behind a PostgresStore.
type Config struct {
	URL               string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	QueryTimeout      time.Duration
}

// querier is the subset of *pgxpool.Pool the store uses.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore reads and writes credentials in the users table.
type PostgresStore struct {
	pool         *pgxpool.Pool
	q            querier
	queryTimeout time.Duration
}

// Connect opens a pool, pings it and returns a store over it.
func Connect(ctx context.Context, cfg Config) (*PostgresStore, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pcfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		pcfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(hctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := NewPostgresStore(pool, cfg.QueryTimeout)
	s.pool = pool
	return s, nil
}

// NewPostgresStore wraps an existing pool or any compatible querier.
func NewPostgresStore(q querier, queryTimeout time.Duration) *PostgresStore {
	return &PostgresStore{q: q, queryTimeout: queryTimeout}
}

// Pool returns the pool opened by Connect, or nil.
func (s *PostgresStore) Pool() *pgxpool.Pool { return s.pool }

// Close releases the pool if the store owns one.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const (
	qUserByUsername = `
SELECT username, password_hash, role, created_at
FROM users
WHERE username = $1;`

	qUserInsert = `
INSERT INTO users (username, password_hash, role)
VALUES ($1, $2, $3)
RETURNING created_at;`

	qUserUpdateHash = `
UPDATE users
SET password_hash = $2,
    updated_at    = NOW()
WHERE username = $1;`
)

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (bootpractice.UserRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var u bootpractice.UserRecord
	err := s.q.QueryRow(ctx, qUserByUsername, username).
		Scan(&u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bootpractice.UserRecord{}, bootpractice.ErrUserNotFound
		}
		return bootpractice.UserRecord{}, fmt.Errorf("user select: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u bootpractice.UserRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var created time.Time
	err := s.q.QueryRow(ctx, qUserInsert, u.Username, u.PasswordHash, u.Role).Scan(&created)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return bootpractice.ErrUserExists
		}
		return fmt.Errorf("user insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.q.Exec(ctx, qUserUpdateHash, username, hash)
	if err != nil {
		return fmt.Errorf("user update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return bootpractice.ErrUserNotFound
	}
	return nil
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}
