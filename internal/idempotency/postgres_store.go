package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schema keys rows by route and client key so one client key can be reused
// across the write routes, matching Key.
const schema = `
CREATE TABLE IF NOT EXISTS counterbridge_idempotency (
    route       TEXT        NOT NULL,
    client_key  TEXT        NOT NULL,
    status_code INT         NOT NULL,
    response    BYTEA       NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    expires_at  TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (route, client_key)
);
CREATE INDEX IF NOT EXISTS counterbridge_idempotency_expires_at
    ON counterbridge_idempotency (expires_at);
`

// PostgresStore shares replayable responses between bridge instances.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return &PostgresStore{pool: pool, now: time.Now}, nil
}

func (p *PostgresStore) Close() {
	p.pool.Close()
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Get ignores rows whose window has passed; Save clears them out.
func (p *PostgresStore) Get(ctx context.Context, key string) (*Record, error) {
	route, clientKey := splitKey(key)
	rows, err := p.pool.Query(ctx, `
SELECT status_code, response, created_at, expires_at
  FROM counterbridge_idempotency
 WHERE route = @route AND client_key = @client_key AND expires_at > @now`,
		pgx.NamedArgs{"route": route, "client_key": clientKey, "now": p.now()})
	if err != nil {
		return nil, err
	}
	rec, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Record])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Save stores record unless a live record already holds the key.
func (p *PostgresStore) Save(ctx context.Context, key string, record Record) error {
	route, clientKey := splitKey(key)
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM counterbridge_idempotency WHERE expires_at <= @now`,
		pgx.NamedArgs{"now": p.now()})
	batch.Queue(`
INSERT INTO counterbridge_idempotency (route, client_key, status_code, response, created_at, expires_at)
VALUES (@route, @client_key, @status, @response, @created, @expires)
ON CONFLICT (route, client_key) DO NOTHING`,
		pgx.NamedArgs{
			"route":      route,
			"client_key": clientKey,
			"status":     record.StatusCode,
			"response":   record.Response,
			"created":    record.CreatedAt,
			"expires":    record.ExpiresAt,
		})
	return p.pool.SendBatch(ctx, batch).Close()
}

// splitKey reverses Key. Keys without a route keep an empty route.
func splitKey(key string) (route, clientKey string) {
	if r, c, ok := strings.Cut(key, keySeparator); ok {
		return r, c
	}
	return "", key
}
