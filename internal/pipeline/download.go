package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tofino/jobsite-crawler/internal/ingest"
	"github.com/tofino/jobsite-crawler/internal/logging"
	"github.com/tofino/jobsite-crawler/internal/metrics"
)

// Download runs the download stage for one listing URL. It is idempotent
// under re-invocation: a URL already recorded is a no-op, and the record
// create is ordered after the content write so a failed write leaves no
// dedup-visible trace.
func (c *Coordinator) Download(ctx context.Context, url string) (ingest.DownloadResult, error) {
	if url == "" {
		return ingest.DownloadResult{}, fmt.Errorf("%w: url is required", ingest.ErrMalformedPayload)
	}
	logger := logging.ForStage(c.logger, "download").With(zap.String("origin_url", url))

	existing, err := c.jobs.FindByOriginURL(ctx, url)
	if err != nil {
		return ingest.DownloadResult{}, ingest.Retryable("dedup store lookup failed", err)
	}
	if existing != nil {
		logger.Info("origin url already processed", zap.String("job_id", existing.ID))
		return c.downloadOutcome(ingest.DownloadResult{Outcome: ingest.OutcomeAlreadyExists}), nil
	}

	content, finalURL, err := c.crawler.Crawl(ctx, url)
	if err != nil {
		c.downloadOutcome(ingest.DownloadResult{Outcome: ingest.OutcomeRetryableFailure})
		return ingest.DownloadResult{}, err
	}

	if ingest.IsOffsite(finalURL, c.site) {
		logger.Info("redirect left the target site", zap.String("final_url", finalURL))
		return c.downloadOutcome(ingest.DownloadResult{Outcome: ingest.OutcomeDiscarded}), nil
	}

	externalID := ingest.ExternalID(finalURL, c.site)
	if externalID == "" {
		logger.Info("no listing id in final url", zap.String("final_url", finalURL))
		return c.downloadOutcome(ingest.DownloadResult{Outcome: ingest.OutcomeDiscarded}), nil
	}

	existing, err = c.jobs.FindByExternalID(ctx, c.site.Source, externalID)
	if err != nil {
		return ingest.DownloadResult{}, ingest.Retryable("dedup store lookup failed", err)
	}
	if existing != nil {
		if existing.OriginURL == "" {
			// Same listing reached through a second origin URL. Attach it;
			// never overwrite a populated value.
			if err := c.jobs.BackfillOriginURL(ctx, existing.ID, url); err != nil {
				return ingest.DownloadResult{}, ingest.Retryable("origin url backfill failed", err)
			}
			logger.Info("backfilled origin url", zap.String("job_id", existing.ID))
		}
		return c.downloadOutcome(ingest.DownloadResult{
			Outcome:    ingest.OutcomeAlreadyExists,
			StorageKey: existing.ID,
		}), nil
	}

	id, err := c.ids.NewID()
	if err != nil {
		return ingest.DownloadResult{}, ingest.Retryable("id generation failed", err)
	}

	// Content first. A retry after a failed write finds no record and
	// simply repeats the whole stage.
	if err := c.blobs.Put(ctx, id, []byte(content)); err != nil {
		return ingest.DownloadResult{}, ingest.Retryable("content write failed", err)
	}

	absolutized, err := ingest.Absolutize(finalURL, c.site)
	if err != nil {
		return ingest.DownloadResult{}, ingest.Retryable("url canonicalization failed", err)
	}

	rec, err := c.jobs.Create(ctx, ingest.JobRecord{
		ID:         id,
		Source:     c.site.Source,
		ExternalID: externalID,
		URL:        absolutized,
		OriginURL:  url,
	})
	if err != nil {
		return ingest.DownloadResult{}, ingest.Retryable("record create failed", err)
	}

	logger.Info("job recorded",
		zap.String("job_id", rec.ID),
		zap.String("external_id", externalID),
	)
	return c.downloadOutcome(ingest.DownloadResult{
		Outcome:    ingest.OutcomeCreated,
		StorageKey: rec.ID,
	}), nil
}

func (c *Coordinator) downloadOutcome(res ingest.DownloadResult) ingest.DownloadResult {
	metrics.ObserveStageOutcome("download", string(res.Outcome))
	return res
}
