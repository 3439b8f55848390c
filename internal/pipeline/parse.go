package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tofino/jobsite-crawler/internal/ingest"
	"github.com/tofino/jobsite-crawler/internal/logging"
	"github.com/tofino/jobsite-crawler/internal/metrics"
)

// Parse runs the parse stage for a previously downloaded job. Missing or
// empty content means the upstream failure was already recorded, so it is a
// discard rather than an error. Re-running only overwrites fields with
// freshly recomputed values.
func (c *Coordinator) Parse(ctx context.Context, jobID string) (ingest.StageOutcome, error) {
	if jobID == "" {
		return "", fmt.Errorf("%w: job id is required", ingest.ErrMalformedPayload)
	}
	logger := logging.ForStage(c.logger, "parse").With(zap.String("job_id", jobID))

	content, err := c.blobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, ingest.ErrNotFound) {
			logger.Warn("no stored content to parse")
			return c.parseOutcome(ingest.OutcomeDiscarded), nil
		}
		return "", ingest.Retryable("content read failed", err)
	}
	if len(content) == 0 {
		logger.Warn("stored content is empty")
		return c.parseOutcome(ingest.OutcomeDiscarded), nil
	}

	fields, err := c.extractor.Extract(content, c.clock.Now())
	if err != nil {
		return "", ingest.Retryable("field extraction failed", err)
	}

	if err := c.jobs.MergeParsedFields(ctx, jobID, fields); err != nil {
		return "", ingest.Retryable("field merge failed", err)
	}

	logger.Info("parsed fields merged")
	return c.parseOutcome(ingest.OutcomeParsed), nil
}

func (c *Coordinator) parseOutcome(outcome ingest.StageOutcome) ingest.StageOutcome {
	metrics.ObserveStageOutcome("parse", string(outcome))
	return outcome
}
