// Package proxy manages selection and health of the rotating egress pool.
package proxy

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/tofino/jobsite-crawler/internal/ingest"
)

// Pick-failure reasons, retryable either way: cooldowns expire on their own
// and registry reads recover.
const (
	reasonRegistryUnavailable = "proxy registry unavailable"
	reasonPoolExhausted       = "proxy pool exhausted"
)

// Selector picks a live proxy for each crawl attempt. Eligibility is
// recomputed from the registry on every pick, never cached.
type Selector struct {
	registry ingest.ProxyRegistry
	clock    ingest.Clock
	cooldown time.Duration

	// intn is swappable in tests for a deterministic pick.
	intn func(n int) int
}

// NewSelector builds a selector over the registry with the given cooldown
// window.
func NewSelector(registry ingest.ProxyRegistry, clock ingest.Clock, cooldown time.Duration) *Selector {
	return &Selector{
		registry: registry,
		clock:    clock,
		cooldown: cooldown,
		intn:     rand.IntN,
	}
}

// Pick returns a random eligible proxy. An empty pool is a retryable
// condition since cooldowns expire on their own. Random rather than
// round-robin selection avoids hot-spotting one proxy across concurrent
// attempts without any shared coordination state.
func (s *Selector) Pick(ctx context.Context) (ingest.ProxyRecord, error) {
	cutoff := s.clock.Now().Add(-s.cooldown)
	eligible, err := s.registry.ListEligible(ctx, cutoff)
	if err != nil {
		return ingest.ProxyRecord{}, ingest.Retryable(reasonRegistryUnavailable, err)
	}
	if len(eligible) == 0 {
		return ingest.ProxyRecord{}, ingest.Retryable(reasonPoolExhausted, nil)
	}
	return eligible[s.intn(len(eligible))], nil
}
