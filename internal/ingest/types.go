// Package ingest defines core types shared across the crawl and ingestion subsystems.
package ingest

import "time"

// ProxyRecord describes one egress point in the proxy pool.
// Records are provisioned out-of-band; this service only ever reads them and
// stamps deactivations.
type ProxyRecord struct {
	ID                string
	Region            string
	InvocationTarget  string
	DeactivatedAt     *time.Time
	DeactivationCount int
}

// Eligible reports whether the proxy may be selected at the given instant.
// Eligibility is derived, never stored: a proxy is eligible when it was never
// deactivated or when its last deactivation is older than the cooldown.
func (p ProxyRecord) Eligible(now time.Time, cooldown time.Duration) bool {
	if p.DeactivatedAt == nil {
		return true
	}
	return now.Sub(*p.DeactivatedAt) > cooldown
}

// JobRecord is the canonical, deduplicated record for one job listing.
// A record may legitimately carry an OriginURL with an empty ExternalID: the
// origin URL was processed but the final destination could not be resolved.
type JobRecord struct {
	ID          string
	Source      string
	ExternalID  string
	URL         string
	OriginURL   string
	Title       string
	CompanyName string
	Location    string
	Description string
	PostedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ParsedFields carries the values extracted by the parse stage.
// Nil pointers are "not supplied" and must be left untouched by a merge.
type ParsedFields struct {
	Title       *string
	CompanyName *string
	Location    *string
	Description *string
	PostedAt    *time.Time
}

// FetchResult is the structured payload returned by the remote fetch unit.
// StatusCode is a pointer so a response that omits it entirely can be told
// apart from a zero status.
type FetchResult struct {
	StatusCode *int   `json:"statusCode"`
	Content    string `json:"content"`
	URL        string `json:"url"`
}

// Site captures the fixed shape of the crawled job site.
type Site struct {
	// Source identifies the site and doubles as the host used to absolutize
	// relative URLs, e.g. "ca.indeed.com".
	Source string
	// Scheme attached when absolutizing relative URLs.
	Scheme string
	// DomainMarker must appear in a final URL's host for the redirect to be
	// considered on-site.
	DomainMarker string
	// ExternalIDParam is the query parameter carrying the site-native listing id.
	ExternalIDParam string
	// ChallengeMarkers are substrings whose presence in a body marks a
	// bot-challenge page.
	ChallengeMarkers []string
}
