package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveHTTPRequest(t *testing.T) {
	Init()

	ObserveHTTPRequest("GET", "/healthz", http.StatusOK, 5*time.Millisecond)
	ObserveHTTPRequest("POST", "/v1/stages/download", http.StatusServiceUnavailable, 20*time.Millisecond)

	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200")); val < 1 {
		t.Errorf("expected GET 200 counter >= 1, got %f", val)
	}
	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "503")); val < 1 {
		t.Errorf("expected POST 503 counter >= 1, got %f", val)
	}
	if val := testutil.CollectAndCount(httpRequestDurationSeconds); val <= 0 {
		t.Errorf("expected request duration histogram to be observed, got %d", val)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	Init()
	ObserveHTTPRequest("GET", "/metrics", http.StatusOK, time.Millisecond)

	ts := httptest.NewServer(Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if errInner := resp.Body.Close(); errInner != nil {
			t.Log(errInner)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "http_requests_total") {
		t.Error("expected http_requests_total in metrics exposition")
	}
}
