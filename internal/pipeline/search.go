package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tofino/jobsite-crawler/internal/ingest"
	"github.com/tofino/jobsite-crawler/internal/logging"
	"github.com/tofino/jobsite-crawler/internal/metrics"
)

// Search crawls a search-results URL and returns the absolutized listing
// URLs found on the page, one per result link. The downstream scheduler
// fans these out as download-stage triggers.
func (c *Coordinator) Search(ctx context.Context, url string) ([]string, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", ingest.ErrMalformedPayload)
	}

	logger := logging.ForStage(c.logger, "search")

	content, finalURL, err := c.crawler.Crawl(ctx, url)
	if err != nil {
		metrics.ObserveStageOutcome("search", string(ingest.OutcomeRetryableFailure))
		return nil, err
	}

	links, err := c.extractor.SearchLinks([]byte(content))
	if err != nil {
		return nil, ingest.Retryable("result link extraction failed", err)
	}

	urls := make([]string, 0, len(links))
	for _, link := range links {
		absolutized, err := ingest.Absolutize(link, c.site)
		if err != nil {
			logger.Warn("skipping unparseable result link",
				zap.String("href", link),
				zap.Error(err),
			)
			continue
		}
		urls = append(urls, absolutized)
	}

	logger.Info("search page processed",
		zap.String("origin_url", url),
		zap.String("final_url", finalURL),
		zap.Int("results", len(urls)),
	)
	metrics.ObserveStageOutcome("search", string(ingest.OutcomeCreated))
	return urls, nil
}
