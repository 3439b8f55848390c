package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tofino/jobsite-crawler/internal/ingest"
)

// ProxyRegistry persists proxy health records in Postgres.
// It assumes a table schema like:
//
//	CREATE TABLE proxies (
//		id TEXT PRIMARY KEY,
//		region TEXT NOT NULL,
//		invocation_target TEXT NOT NULL,
//		deactivated_at TIMESTAMPTZ,
//		deactivation_count INTEGER NOT NULL DEFAULT 0,
//		updated_at TIMESTAMPTZ
//	);
type ProxyRegistry struct {
	pool  dbPool
	clock ingest.Clock
}

// NewProxyRegistry constructs a registry from an existing pool.
func NewProxyRegistry(pool dbPool, clock ingest.Clock) (*ProxyRegistry, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	return &ProxyRegistry{pool: pool, clock: clock}, nil
}

const proxyColumns = "id, region, invocation_target, deactivated_at, deactivation_count"

// GetProxy fetches a proxy by id.
func (r *ProxyRegistry) GetProxy(ctx context.Context, id string) (ingest.ProxyRecord, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+proxyColumns+" FROM proxies WHERE id = $1", id)
	rec, err := scanProxy(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ingest.ProxyRecord{}, ingest.ErrNotFound
		}
		return ingest.ProxyRecord{}, fmt.Errorf("get proxy: %w", err)
	}
	return rec, nil
}

// ListEligible returns proxies never deactivated or deactivated before the
// cutoff. The filter runs in SQL; the pool can be large and eligibility must
// be recomputed on every selection.
func (r *ProxyRegistry) ListEligible(ctx context.Context, cutoff time.Time) ([]ingest.ProxyRecord, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+proxyColumns+" FROM proxies WHERE deactivated_at IS NULL OR deactivated_at < $1",
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("list eligible proxies: %w", err)
	}
	defer rows.Close()

	var out []ingest.ProxyRecord
	for rows.Next() {
		rec, err := scanProxy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proxy row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proxy rows: %w", err)
	}
	return out, nil
}

// Deactivate stamps the proxy's deactivation time and increments its counter.
// The increment happens in SQL so concurrent deactivations of the same proxy
// never lose updates, and the id condition makes a vanished record an error
// rather than a silent no-op.
func (r *ProxyRegistry) Deactivate(ctx context.Context, id string) error {
	now := r.clock.Now()
	tag, err := r.pool.Exec(ctx,
		`UPDATE proxies
SET deactivated_at = $2,
	deactivation_count = deactivation_count + 1,
	updated_at = $2
WHERE id = $1`,
		id, now)
	if err != nil {
		return fmt.Errorf("deactivate proxy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ingest.ErrNotFound
	}
	return nil
}

func scanProxy(row pgx.Row) (ingest.ProxyRecord, error) {
	var rec ingest.ProxyRecord
	if err := row.Scan(&rec.ID, &rec.Region, &rec.InvocationTarget, &rec.DeactivatedAt, &rec.DeactivationCount); err != nil {
		return ingest.ProxyRecord{}, err
	}
	return rec, nil
}
