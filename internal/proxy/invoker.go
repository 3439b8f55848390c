package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/tofino/jobsite-crawler/internal/ingest"
	"github.com/tofino/jobsite-crawler/internal/metrics"
)

// Soft-failure reasons, also used as deactivation metric labels.
const (
	reasonOpaqueResponse   = "opaque/garbled response"
	reasonNonSuccessStatus = "non-success status"
	reasonEmptyContent     = "empty content"
	reasonChallengePage    = "challenge page detected"
)

// Invoker drives one crawl attempt through a selected proxy and classifies
// the outcome. A proxy that is network-healthy but rate-limited or blocked
// by the target site produces garbage that only content-level inspection
// can detect, so every soft failure deactivates the proxy immediately.
type Invoker struct {
	selector *Selector
	unit     ingest.FetchInvoker
	registry ingest.ProxyRegistry
	site     ingest.Site
	logger   *zap.Logger
}

// NewInvoker builds the crawl invoker.
func NewInvoker(selector *Selector, unit ingest.FetchInvoker, registry ingest.ProxyRegistry, site ingest.Site, logger *zap.Logger) *Invoker {
	return &Invoker{
		selector: selector,
		unit:     unit,
		registry: registry,
		site:     site,
		logger:   logger,
	}
}

// Crawl fetches url through a random eligible proxy and returns usable page
// content plus the final URL after redirects. Communication failures and
// malformed fetch results are treated identically to semantic failures.
func (i *Invoker) Crawl(ctx context.Context, url string) (string, string, error) {
	proxy, err := i.selector.Pick(ctx)
	if err != nil {
		metrics.ObserveCrawlAttempt(pickFailureLabel(err))
		return "", "", err
	}

	result, invokeErr := i.unit.Invoke(ctx, proxy.InvocationTarget, url)

	if reason := i.classify(result, invokeErr); reason != "" {
		i.logger.Warn("soft crawl failure",
			zap.String("url", url),
			zap.String("proxy_id", proxy.ID),
			zap.String("region", proxy.Region),
			zap.String("reason", reason),
			zap.Error(invokeErr),
		)
		metrics.ObserveCrawlAttempt("soft_failure")
		return "", "", i.deactivateAndFail(ctx, proxy, reason, invokeErr)
	}

	finalURL := result.URL
	if finalURL == "" {
		finalURL = url
	}
	metrics.ObserveCrawlAttempt("success")
	return result.Content, finalURL, nil
}

// pickFailureLabel separates a registry read error from a genuinely empty
// pool in the attempt metrics.
func pickFailureLabel(err error) string {
	var re *ingest.RetryableError
	if errors.As(err, &re) && re.Reason == reasonRegistryUnavailable {
		return "registry_error"
	}
	return "pool_exhausted"
}

// classify applies the soft-failure checks in order and returns the first
// matching reason, or "" for a usable result.
func (i *Invoker) classify(result ingest.FetchResult, invokeErr error) string {
	if invokeErr != nil || result.StatusCode == nil {
		return reasonOpaqueResponse
	}
	if *result.StatusCode != http.StatusOK {
		return reasonNonSuccessStatus
	}
	if result.Content == "" {
		return reasonEmptyContent
	}
	for _, marker := range i.site.ChallengeMarkers {
		if strings.Contains(result.Content, marker) {
			return reasonChallengePage
		}
	}
	return ""
}

// deactivateAndFail quarantines the proxy, then surfaces the soft failure as
// retryable. A failed deactivation is itself retryable so the scheduler
// re-attempts rather than burning the same bad proxy silently.
func (i *Invoker) deactivateAndFail(ctx context.Context, proxy ingest.ProxyRecord, reason string, cause error) error {
	if err := i.registry.Deactivate(ctx, proxy.ID); err != nil {
		return ingest.Retryable(reason, fmt.Errorf("deactivate proxy %s: %w", proxy.ID, err))
	}
	metrics.ObserveProxyDeactivation(reason)
	return ingest.Retryable(reason, cause)
}
