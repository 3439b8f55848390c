package fetchunit

import (
	"context"
	"fmt"

	"github.com/gocolly/colly/v2"

	"github.com/tofino/jobsite-crawler/internal/ingest"
)

// LocalUnit fetches pages directly from the crawler process instead of
// through a regional fetch unit. Intended for development, where the proxy
// records' invocation targets are ignored.
type LocalUnit struct {
	userAgent string
}

// NewLocalUnit builds a direct fetcher with the given user agent.
func NewLocalUnit(userAgent string) *LocalUnit {
	return &LocalUnit{userAgent: userAgent}
}

// Invoke fetches url with a fresh collector and wraps the response in the
// same envelope a remote unit would return. A non-2xx answer is not an
// error here; the status code rides in the envelope so the caller can
// classify it.
func (u *LocalUnit) Invoke(ctx context.Context, _, url string) (ingest.FetchResult, error) {
	collector := colly.NewCollector(
		colly.UserAgent(u.userAgent),
	)
	collector.IgnoreRobotsTxt = true

	var result ingest.FetchResult
	var fetchErr error

	collector.OnResponse(func(r *colly.Response) {
		status := r.StatusCode
		result = ingest.FetchResult{
			StatusCode: &status,
			Content:    string(r.Body),
			URL:        r.Request.URL.String(),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			status := r.StatusCode
			result = ingest.FetchResult{
				StatusCode: &status,
				Content:    string(r.Body),
				URL:        r.Request.URL.String(),
			}
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return ingest.FetchResult{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case visitErr := <-done:
		collector.Wait()
		if fetchErr != nil {
			return ingest.FetchResult{}, fetchErr
		}
		if result.StatusCode != nil {
			// OnError reported a non-2xx status; Visit's error restates it.
			return result, nil
		}
		if visitErr != nil {
			return ingest.FetchResult{}, visitErr
		}
		return result, nil
	}
}
