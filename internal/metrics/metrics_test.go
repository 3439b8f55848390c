package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if crawlAttemptsTotal == nil || proxyDeactivationsTotal == nil ||
		stageOutcomesTotal == nil || httpRequestsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObserveCrawlAttempt("success")
	if val := testutil.ToFloat64(crawlAttemptsTotal.WithLabelValues("success")); val != 1 {
		t.Errorf("expected crawl attempt counter to be 1, got %f", val)
	}

	ObserveProxyDeactivation("challenge page")
	if val := testutil.ToFloat64(proxyDeactivationsTotal.WithLabelValues("challenge page")); val != 1 {
		t.Errorf("expected deactivation counter to be 1, got %f", val)
	}

	ObserveStageOutcome("download", "created")
	if val := testutil.ToFloat64(stageOutcomesTotal.WithLabelValues("download", "created")); val != 1 {
		t.Errorf("expected stage outcome counter to be 1, got %f", val)
	}
}

func TestObserversBeforeInitDoNotPanic(t *testing.T) {
	// Collectors are package-level; observers must tolerate a nil collector
	// in binaries that never call Init.
	ObserveCrawlAttempt("success")
	ObserveProxyDeactivation("empty content")
	ObserveStageOutcome("parse", "discarded")
}
