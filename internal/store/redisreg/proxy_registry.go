// Package redisreg provides a proxy registry backed by Redis, for deployments
// where the fetcher fleet shares rotation state without a SQL database.
package redisreg

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tofino/jobsite-crawler/internal/ingest"
)

const (
	proxyKeyPrefix = "proxy:"
	// deactivationIndexKey is a sorted set of proxy ids scored by the unix
	// time of their last deactivation, 0 meaning never deactivated.
	deactivationIndexKey = "proxies:by_deactivation"
)

// NewClient parses addr (a redis:// URL or host:port) and verifies
// connectivity.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{Addr: addr, Password: password, DB: db}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// deactivateScript marks a proxy unhealthy and bumps its failure count in a
// single atomic step, mirroring a conditional-update-with-increment. Returns
// 0 when the proxy does not exist.
var deactivateScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], "deactivated_at", ARGV[1])
local count = redis.call("HINCRBY", KEYS[1], "deactivation_count", 1)
redis.call("ZADD", KEYS[2], ARGV[1], ARGV[2])
return count
`)

// ProxyRegistry stores each proxy as a hash plus a sorted-set index so
// eligibility can be answered with a single range query.
type ProxyRegistry struct {
	client *redis.Client
	clock  ingest.Clock
}

func NewProxyRegistry(client *redis.Client, clock ingest.Clock) (*ProxyRegistry, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	return &ProxyRegistry{client: client, clock: clock}, nil
}

// Register writes or overwrites a proxy record and its index entry.
func (r *ProxyRegistry) Register(ctx context.Context, rec ingest.ProxyRecord) error {
	var score int64
	if rec.DeactivatedAt != nil {
		score = rec.DeactivatedAt.Unix()
	}
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, proxyKey(rec.ID), map[string]any{
		"id":                 rec.ID,
		"region":             rec.Region,
		"invocation_target":  rec.InvocationTarget,
		"deactivated_at":     score,
		"deactivation_count": rec.DeactivationCount,
	})
	pipe.ZAdd(ctx, deactivationIndexKey, redis.Z{Score: float64(score), Member: rec.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("register proxy %s: %w", rec.ID, err)
	}
	return nil
}

func (r *ProxyRegistry) GetProxy(ctx context.Context, id string) (ingest.ProxyRecord, error) {
	fields, err := r.client.HGetAll(ctx, proxyKey(id)).Result()
	if err != nil {
		return ingest.ProxyRecord{}, fmt.Errorf("get proxy %s: %w", id, err)
	}
	if len(fields) == 0 {
		return ingest.ProxyRecord{}, ingest.ErrNotFound
	}
	return recordFromHash(fields)
}

// ListEligible returns proxies that were never deactivated (score 0) or whose
// last deactivation predates the cutoff. The index makes this one range
// query plus a pipelined hash read per hit.
func (r *ProxyRegistry) ListEligible(ctx context.Context, cutoff time.Time) ([]ingest.ProxyRecord, error) {
	ids, err := r.client.ZRangeByScore(ctx, deactivationIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("range eligible proxies: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, proxyKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("load eligible proxies: %w", err)
	}

	records := make([]ingest.ProxyRecord, 0, len(ids))
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			// Index entry without a hash; skip rather than fail the pick.
			continue
		}
		rec, err := recordFromHash(fields)
		if err != nil {
			return nil, fmt.Errorf("decode proxy %s: %w", ids[i], err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Deactivate stamps the proxy unhealthy and increments its failure count
// atomically via a Lua script.
func (r *ProxyRegistry) Deactivate(ctx context.Context, id string) error {
	now := r.clock.Now().Unix()
	res, err := deactivateScript.Run(ctx, r.client,
		[]string{proxyKey(id), deactivationIndexKey},
		now, id).Int()
	if err != nil {
		return fmt.Errorf("deactivate proxy %s: %w", id, err)
	}
	if res == 0 {
		return ingest.ErrNotFound
	}
	return nil
}

func proxyKey(id string) string {
	return proxyKeyPrefix + id
}

func recordFromHash(fields map[string]string) (ingest.ProxyRecord, error) {
	rec := ingest.ProxyRecord{
		ID:               fields["id"],
		Region:           fields["region"],
		InvocationTarget: fields["invocation_target"],
	}
	if raw := fields["deactivation_count"]; raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil {
			return ingest.ProxyRecord{}, fmt.Errorf("parse deactivation_count %q: %w", raw, err)
		}
		rec.DeactivationCount = count
	}
	if raw := fields["deactivated_at"]; raw != "" && raw != "0" {
		epoch, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return ingest.ProxyRecord{}, fmt.Errorf("parse deactivated_at %q: %w", raw, err)
		}
		at := time.Unix(epoch, 0).UTC()
		rec.DeactivatedAt = &at
	}
	return rec, nil
}
