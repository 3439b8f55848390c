// Package fetchunit provides invokers for the regional fetch units that
// perform the actual page retrieval on behalf of the pipeline.
package fetchunit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tofino/jobsite-crawler/internal/ingest"
)

// invokeRequest is the wire payload sent to a fetch unit.
type invokeRequest struct {
	URL string `json:"url"`
}

// RemoteInvoker calls a proxy's invocation target over HTTP. The target
// fetches the page from its own egress address and replies with the fetch
// result envelope.
type RemoteInvoker struct {
	client *http.Client
}

// NewRemoteInvoker builds an invoker with the given per-invocation timeout.
func NewRemoteInvoker(timeout time.Duration) *RemoteInvoker {
	return &RemoteInvoker{
		client: &http.Client{Timeout: timeout},
	}
}

// Invoke posts the URL to the target and decodes the result envelope. Any
// transport or decoding problem surfaces as an error; the caller treats it
// like an unhealthy proxy.
func (i *RemoteInvoker) Invoke(ctx context.Context, target, url string) (ingest.FetchResult, error) {
	body, err := json.Marshal(invokeRequest{URL: url})
	if err != nil {
		return ingest.FetchResult{}, fmt.Errorf("encode invoke request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return ingest.FetchResult{}, fmt.Errorf("build invoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return ingest.FetchResult{}, fmt.Errorf("invoke fetch unit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ingest.FetchResult{}, fmt.Errorf("fetch unit replied %d", resp.StatusCode)
	}

	var result ingest.FetchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ingest.FetchResult{}, fmt.Errorf("decode fetch result: %w", err)
	}
	return result, nil
}
