// Package memory provides in-memory store implementations for development
// and testing.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tofino/jobsite-crawler/internal/ingest"
)

// ProxyRegistry keeps proxy records in a map guarded by a mutex.
type ProxyRegistry struct {
	mu      sync.RWMutex
	clock   ingest.Clock
	proxies map[string]ingest.ProxyRecord
}

// NewProxyRegistry constructs an empty registry.
func NewProxyRegistry(clock ingest.Clock) *ProxyRegistry {
	return &ProxyRegistry{
		clock:   clock,
		proxies: make(map[string]ingest.ProxyRecord),
	}
}

// Seed inserts a proxy record, replacing any record with the same id.
// Pool provisioning is out-of-band in production; tests use Seed for it.
func (r *ProxyRegistry) Seed(rec ingest.ProxyRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.proxies[rec.ID] = rec
}

// GetProxy fetches a proxy by id.
func (r *ProxyRegistry) GetProxy(_ context.Context, id string) (ingest.ProxyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.proxies[id]
	if !ok {
		return ingest.ProxyRecord{}, ingest.ErrNotFound
	}
	return rec, nil
}

// ListEligible returns proxies never deactivated or deactivated before cutoff.
func (r *ProxyRegistry) ListEligible(_ context.Context, cutoff time.Time) ([]ingest.ProxyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ingest.ProxyRecord
	for _, rec := range r.proxies {
		if rec.DeactivatedAt == nil || rec.DeactivatedAt.Before(cutoff) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Deactivate stamps the deactivation time and increments the counter.
func (r *ProxyRegistry) Deactivate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.proxies[id]
	if !ok {
		return ingest.ErrNotFound
	}
	now := r.clock.Now()
	rec.DeactivatedAt = &now
	rec.DeactivationCount++
	r.proxies[id] = rec
	return nil
}
