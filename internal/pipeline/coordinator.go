// Package pipeline implements the ingestion coordinator: the download,
// parse, and search stages that turn externally triggered URLs into
// deduplicated job records. Every stage is safe to re-run with the same
// input; coordination relies entirely on the stores' conditional writes,
// never on in-process locking.
package pipeline

import (
	"go.uber.org/zap"

	"github.com/tofino/jobsite-crawler/internal/ingest"
	"github.com/tofino/jobsite-crawler/internal/parser"
)

// Coordinator wires the crawl invoker, the dedup store, and blob storage
// into the three pipeline stages.
type Coordinator struct {
	jobs      ingest.JobStore
	blobs     ingest.BlobStore
	crawler   ingest.Crawler
	extractor *parser.Extractor
	ids       ingest.IDGenerator
	clock     ingest.Clock
	site      ingest.Site
	logger    *zap.Logger
}

// NewCoordinator builds a coordinator for the given site.
func NewCoordinator(
	jobs ingest.JobStore,
	blobs ingest.BlobStore,
	crawler ingest.Crawler,
	extractor *parser.Extractor,
	ids ingest.IDGenerator,
	clock ingest.Clock,
	site ingest.Site,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		jobs:      jobs,
		blobs:     blobs,
		crawler:   crawler,
		extractor: extractor,
		ids:       ids,
		clock:     clock,
		site:      site,
		logger:    logger,
	}
}
