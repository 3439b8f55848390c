package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tofino/jobsite-crawler/internal/ingest"
	"github.com/tofino/jobsite-crawler/internal/parser"
	"github.com/tofino/jobsite-crawler/internal/store/memory"
)

var (
	testNow  = time.Date(2024, time.March, 7, 12, 0, 0, 0, time.UTC)
	testSite = ingest.Site{
		Source:           "ca.indeed.com",
		Scheme:           "https",
		DomainMarker:     "indeed",
		ExternalIDParam:  "jk",
		ChallengeMarkers: []string{"www.hcaptcha.com"},
	}
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type seqIDs struct {
	next int
	ids  []string
}

func (g *seqIDs) NewID() (string, error) {
	g.next++
	id := g.ids[(g.next-1)%len(g.ids)]
	return id, nil
}

// stubCrawler returns canned content and final URL, or a retryable error.
type stubCrawler struct {
	content  string
	finalURL string
	err      error
	calls    int
}

func (c *stubCrawler) Crawl(context.Context, string) (string, string, error) {
	c.calls++
	if c.err != nil {
		return "", "", c.err
	}
	return c.content, c.finalURL, nil
}

// failingBlobStore rejects every write.
type failingBlobStore struct{}

func (failingBlobStore) Put(context.Context, string, []byte) error {
	return errors.New("storage unavailable")
}

func (failingBlobStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("storage unavailable")
}

type fixture struct {
	jobs    *memory.JobStore
	blobs   *memory.BlobStore
	crawler *stubCrawler
	coord   *Coordinator
}

func newFixture(t *testing.T, crawler *stubCrawler) *fixture {
	t.Helper()
	clock := fixedClock{now: testNow}
	jobs := memory.NewJobStore(clock)
	blobs := memory.NewBlobStore()
	coord := NewCoordinator(jobs, blobs, crawler, parser.New(), &seqIDs{ids: []string{"job-1", "job-2"}}, clock, testSite, zap.NewNop())
	return &fixture{jobs: jobs, blobs: blobs, crawler: crawler, coord: coord}
}

const originURL = "https://ca.indeed.com/rc/clk?jk=abc123"
const finalURL = "https://ca.indeed.com/viewjob?jk=abc123"

func TestDownloadCreatesRecordAfterContent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubCrawler{content: "<html>job</html>", finalURL: finalURL})

	res, err := f.coord.Download(context.Background(), originURL)
	require.NoError(t, err)
	assert.Equal(t, ingest.OutcomeCreated, res.Outcome)
	assert.Equal(t, "job-1", res.StorageKey)

	rec := f.jobs.Get("job-1")
	require.NotNil(t, rec)
	assert.Equal(t, "ca.indeed.com", rec.Source)
	assert.Equal(t, "abc123", rec.ExternalID)
	assert.Equal(t, finalURL, rec.URL)
	assert.Equal(t, originURL, rec.OriginURL)

	content, err := f.blobs.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "<html>job</html>", string(content))
}

func TestDownloadIdempotentOnRetrigger(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubCrawler{content: "<html>job</html>", finalURL: finalURL})

	first, err := f.coord.Download(context.Background(), originURL)
	require.NoError(t, err)
	require.Equal(t, ingest.OutcomeCreated, first.Outcome)

	second, err := f.coord.Download(context.Background(), originURL)
	require.NoError(t, err)
	assert.Equal(t, ingest.OutcomeAlreadyExists, second.Outcome)

	// The retrigger never reached the crawler.
	assert.Equal(t, 1, f.crawler.calls)
	assert.Equal(t, 1, f.jobs.Len())
}

func TestDownloadBackfillsEmptyOriginURL(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubCrawler{content: "<html>job</html>", finalURL: finalURL})

	// Same listing already known by external id, found through another path.
	_, err := f.jobs.Create(context.Background(), ingest.JobRecord{
		ID:         "job-existing",
		Source:     "ca.indeed.com",
		ExternalID: "abc123",
	})
	require.NoError(t, err)

	res, err := f.coord.Download(context.Background(), originURL)
	require.NoError(t, err)
	assert.Equal(t, ingest.OutcomeAlreadyExists, res.Outcome)
	assert.Equal(t, "job-existing", res.StorageKey)

	rec := f.jobs.Get("job-existing")
	require.NotNil(t, rec)
	assert.Equal(t, originURL, rec.OriginURL)
	assert.Equal(t, 1, f.jobs.Len())
}

func TestDownloadNeverOverwritesOriginURL(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubCrawler{content: "<html>job</html>", finalURL: finalURL})

	_, err := f.jobs.Create(context.Background(), ingest.JobRecord{
		ID:         "job-existing",
		Source:     "ca.indeed.com",
		ExternalID: "abc123",
		OriginURL:  "https://ca.indeed.com/rc/clk?jk=first",
	})
	require.NoError(t, err)

	res, err := f.coord.Download(context.Background(), originURL)
	require.NoError(t, err)
	assert.Equal(t, ingest.OutcomeAlreadyExists, res.Outcome)

	rec := f.jobs.Get("job-existing")
	require.NotNil(t, rec)
	assert.Equal(t, "https://ca.indeed.com/rc/clk?jk=first", rec.OriginURL)
}

func TestDownloadDiscardsOffsiteRedirect(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubCrawler{
		content:  "<html>somewhere else</html>",
		finalURL: "https://careers.example.com/postings/42",
	})

	res, err := f.coord.Download(context.Background(), originURL)
	require.NoError(t, err)
	assert.Equal(t, ingest.OutcomeDiscarded, res.Outcome)
	assert.Zero(t, f.jobs.Len())
	assert.Zero(t, f.blobs.Len())
}

func TestDownloadDiscardsWhenNoListingID(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubCrawler{
		content:  "<html>landing page</html>",
		finalURL: "https://ca.indeed.com/jobs?q=engineer",
	})

	res, err := f.coord.Download(context.Background(), originURL)
	require.NoError(t, err)
	assert.Equal(t, ingest.OutcomeDiscarded, res.Outcome)
	assert.Zero(t, f.jobs.Len())
}

func TestDownloadPropagatesCrawlFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubCrawler{err: ingest.Retryable("challenge page detected", nil)})

	_, err := f.coord.Download(context.Background(), originURL)
	require.Error(t, err)
	assert.True(t, ingest.IsRetryable(err))
	assert.Zero(t, f.jobs.Len())
}

func TestDownloadContentWriteFailureLeavesNoRecord(t *testing.T) {
	t.Parallel()

	clock := fixedClock{now: testNow}
	jobs := memory.NewJobStore(clock)
	crawler := &stubCrawler{content: "<html>job</html>", finalURL: finalURL}
	coord := NewCoordinator(jobs, failingBlobStore{}, crawler, parser.New(), &seqIDs{ids: []string{"job-1"}}, clock, testSite, zap.NewNop())

	_, err := coord.Download(context.Background(), originURL)
	require.Error(t, err)
	assert.True(t, ingest.IsRetryable(err))

	// The record create never ran, so a retry repeats the whole stage.
	assert.Zero(t, jobs.Len())
}

func TestDownloadMalformedInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubCrawler{})

	_, err := f.coord.Download(context.Background(), "")
	require.ErrorIs(t, err, ingest.ErrMalformedPayload)
	assert.Zero(t, f.crawler.calls)
}

const listingPage = `<html><body>
<h1 class="jobsearch-JobInfoHeader-title">Staff Engineer</h1>
<div class="jobsearch-InlineCompanyRating"><span>Acme Corp</span></div>
<div class="jobsearch-JobInfoHeader-subtitle"><div>Acme Corp</div><div>Toronto, ON</div><div>Remote</div></div>
<div class="jobsearch-jobDescriptionText"><p>Build things.</p><p>Ship things.</p></div>
<div class="jobsearch-JobMetadataFooter"><div>ca.indeed.com</div><div>2 days ago</div></div>
</body></html>`

func TestParseMergesExtractedFields(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubCrawler{content: listingPage, finalURL: finalURL})

	res, err := f.coord.Download(context.Background(), originURL)
	require.NoError(t, err)
	require.Equal(t, ingest.OutcomeCreated, res.Outcome)

	outcome, err := f.coord.Parse(context.Background(), res.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, ingest.OutcomeParsed, outcome)

	rec := f.jobs.Get(res.StorageKey)
	require.NotNil(t, rec)
	assert.Equal(t, "Staff Engineer", rec.Title)
	assert.Equal(t, "Acme Corp", rec.CompanyName)
	assert.Equal(t, "Toronto, ON/Remote", rec.Location)
	assert.Contains(t, rec.Description, "Build things.")
	require.NotNil(t, rec.PostedAt)
	assert.Equal(t, testNow.AddDate(0, 0, -2).Truncate(24*time.Hour), rec.PostedAt.UTC())
}

func TestParseMissingContentIsDiscard(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubCrawler{})

	outcome, err := f.coord.Parse(context.Background(), "never-downloaded")
	require.NoError(t, err)
	assert.Equal(t, ingest.OutcomeDiscarded, outcome)
}

func TestParseEmptyContentIsDiscard(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubCrawler{})
	require.NoError(t, f.blobs.Put(context.Background(), "job-1", nil))

	outcome, err := f.coord.Parse(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, ingest.OutcomeDiscarded, outcome)
}

func TestParseMalformedInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubCrawler{})

	_, err := f.coord.Parse(context.Background(), "")
	require.ErrorIs(t, err, ingest.ErrMalformedPayload)
}

func TestSearchExtractsAndAbsolutizesLinks(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<a class="result" href="/rc/clk?jk=aaa">Job A</a>
<a class="result" href="https://ca.indeed.com/rc/clk?jk=bbb">Job B</a>
<a class="other" href="/not-a-result">skip</a>
</body></html>`
	f := newFixture(t, &stubCrawler{content: page, finalURL: "https://ca.indeed.com/jobs?q=engineer"})

	urls, err := f.coord.Search(context.Background(), "https://ca.indeed.com/jobs?q=engineer")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://ca.indeed.com/rc/clk?jk=aaa",
		"https://ca.indeed.com/rc/clk?jk=bbb",
	}, urls)
}

func TestSearchPropagatesCrawlFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubCrawler{err: ingest.Retryable("proxy pool exhausted", nil)})

	_, err := f.coord.Search(context.Background(), "https://ca.indeed.com/jobs?q=engineer")
	require.Error(t, err)
	assert.True(t, ingest.IsRetryable(err))
}
