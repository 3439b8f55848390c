package ingest

import (
	"context"
	"time"
)

// ProxyRegistry persists proxy health records.
type ProxyRegistry interface {
	// GetProxy fetches a proxy by id. Returns ErrNotFound when absent.
	GetProxy(ctx context.Context, id string) (ProxyRecord, error)

	// ListEligible returns every proxy never deactivated or deactivated
	// before the cutoff. The filter is applied store-side.
	ListEligible(ctx context.Context, cutoff time.Time) ([]ProxyRecord, error)

	// Deactivate stamps the proxy's deactivation time and atomically
	// increments its deactivation counter. Returns ErrNotFound when the id
	// no longer exists; it never silently no-ops.
	Deactivate(ctx context.Context, id string) error
}

// JobStore persists deduplicated job records with secondary lookups by
// origin URL and by (source, external id). Find methods return nil, nil when
// no record matches.
type JobStore interface {
	FindByOriginURL(ctx context.Context, originURL string) (*JobRecord, error)
	FindByExternalID(ctx context.Context, source, externalID string) (*JobRecord, error)

	// Create writes a new record, assigning an id when rec.ID is empty and
	// stamping CreatedAt/UpdatedAt. Only non-empty fields are persisted.
	Create(ctx context.Context, rec JobRecord) (JobRecord, error)

	// BackfillOriginURL attaches the origin URL to an existing record. The
	// write is conditional on the stored value still being empty: a record
	// that already carries an origin URL is left untouched and the call is a
	// no-op. Returns ErrNotFound when the id no longer exists.
	BackfillOriginURL(ctx context.Context, id, originURL string) error

	// MergeParsedFields writes only the supplied fields, always refreshing
	// UpdatedAt. Returns ErrNotFound when the id no longer exists.
	MergeParsedFields(ctx context.Context, id string, fields ParsedFields) error
}

// BlobStore reads and writes raw page content keyed by job id.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// FetchInvoker executes one remote fetch through a proxy's invocation target.
// Communication failures and malformed responses surface as errors; the
// caller treats them like any other soft failure.
type FetchInvoker interface {
	Invoke(ctx context.Context, target, url string) (FetchResult, error)
}

// Crawler drives a single crawl attempt through the proxy pool and returns
// usable page content plus the final URL after redirects.
type Crawler interface {
	Crawl(ctx context.Context, url string) (content, finalURL string, err error)
}

// Notifier delivers a subject/message pair to the operations channel.
type Notifier interface {
	Notify(ctx context.Context, subject, message string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
