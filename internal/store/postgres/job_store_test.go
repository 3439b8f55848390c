package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/tofino/jobsite-crawler/internal/ingest"
)

type stubIDs struct {
	id string
}

func (s stubIDs) NewID() (string, error) { return s.id, nil }

func jobRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "source", "external_id", "url", "origin_url",
		"title", "company_name", "location_string", "job_description",
		"posted_at", "created_at", "updated_at",
	})
}

func newTestJobStore(t *testing.T) (*JobStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewJobStore(mock, fixedClock{now: testTime}, stubIDs{id: "generated-id"})
	require.NoError(t, err)
	return store, mock
}

func TestFindByOriginURL(t *testing.T) {
	t.Parallel()

	store, mock := newTestJobStore(t)

	posted := testTime.Add(-48 * time.Hour)
	mock.ExpectQuery("FROM job_postings WHERE origin_url = \\$1").
		WithArgs("https://ca.indeed.com/viewjob?jk=abc123").
		WillReturnRows(jobRows().AddRow(
			"job-1", "ca.indeed.com", "abc123", "https://ca.indeed.com/viewjob?jk=abc123",
			"https://ca.indeed.com/viewjob?jk=abc123",
			"Staff Engineer", "Acme", "Toronto, ON", "Build things.",
			&posted, testTime, testTime,
		))

	rec, err := store.FindByOriginURL(context.Background(), "https://ca.indeed.com/viewjob?jk=abc123")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, "job-1", rec.ID)
	require.Equal(t, "abc123", rec.ExternalID)
	require.Equal(t, "Staff Engineer", rec.Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByOriginURLMiss(t *testing.T) {
	t.Parallel()

	store, mock := newTestJobStore(t)

	mock.ExpectQuery("FROM job_postings WHERE origin_url = \\$1").
		WithArgs("https://ca.indeed.com/viewjob?jk=missing").
		WillReturnRows(jobRows())

	rec, err := store.FindByOriginURL(context.Background(), "https://ca.indeed.com/viewjob?jk=missing")
	require.NoError(t, err)
	require.Nil(t, rec)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByOriginURLEmptyIsNoQuery(t *testing.T) {
	t.Parallel()

	store, mock := newTestJobStore(t)

	rec, err := store.FindByOriginURL(context.Background(), "")
	require.NoError(t, err)
	require.Nil(t, rec)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByExternalIDEmptyIsNoQuery(t *testing.T) {
	t.Parallel()

	store, mock := newTestJobStore(t)

	rec, err := store.FindByExternalID(context.Background(), "ca.indeed.com", "")
	require.NoError(t, err)
	require.Nil(t, rec)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAssignsIDAndTimestamps(t *testing.T) {
	t.Parallel()

	store, mock := newTestJobStore(t)

	mock.ExpectExec("INSERT INTO job_postings").
		WithArgs("generated-id", "ca.indeed.com", "abc123",
			"https://ca.indeed.com/viewjob?jk=abc123",
			"https://ca.indeed.com/viewjob?jk=abc123",
			"", "", "", "", (*time.Time)(nil), testTime).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec, err := store.Create(context.Background(), ingest.JobRecord{
		Source:     "ca.indeed.com",
		ExternalID: "abc123",
		URL:        "https://ca.indeed.com/viewjob?jk=abc123",
		OriginURL:  "https://ca.indeed.com/viewjob?jk=abc123",
	})
	require.NoError(t, err)
	require.Equal(t, "generated-id", rec.ID)
	require.Equal(t, testTime, rec.CreatedAt)
	require.Equal(t, testTime, rec.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePersistsParsedFields(t *testing.T) {
	t.Parallel()

	store, mock := newTestJobStore(t)

	posted := testTime.Add(-48 * time.Hour)
	mock.ExpectExec("INSERT INTO job_postings").
		WithArgs("job-1", "ca.indeed.com", "abc123",
			"https://ca.indeed.com/viewjob?jk=abc123", "",
			"Staff Engineer", "Acme", "Toronto, ON", "Build things.",
			&posted, testTime).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	_, err := store.Create(context.Background(), ingest.JobRecord{
		ID:          "job-1",
		Source:      "ca.indeed.com",
		ExternalID:  "abc123",
		URL:         "https://ca.indeed.com/viewjob?jk=abc123",
		Title:       "Staff Engineer",
		CompanyName: "Acme",
		Location:    "Toronto, ON",
		Description: "Build things.",
		PostedAt:    &posted,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateKeepsCallerID(t *testing.T) {
	t.Parallel()

	store, mock := newTestJobStore(t)

	mock.ExpectExec("INSERT INTO job_postings").
		WithArgs("caller-id", "ca.indeed.com", "abc123", "", "",
			"", "", "", "", (*time.Time)(nil), testTime).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec, err := store.Create(context.Background(), ingest.JobRecord{
		ID:         "caller-id",
		Source:     "ca.indeed.com",
		ExternalID: "abc123",
	})
	require.NoError(t, err)
	require.Equal(t, "caller-id", rec.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackfillOriginURL(t *testing.T) {
	t.Parallel()

	store, mock := newTestJobStore(t)

	mock.ExpectExec(`UPDATE job_postings SET origin_url = \$2, updated_at = \$3 WHERE id = \$1 AND origin_url IS NULL`).
		WithArgs("job-1", "https://ca.indeed.com/rc/clk?jk=abc123", testTime).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.BackfillOriginURL(context.Background(), "job-1", "https://ca.indeed.com/rc/clk?jk=abc123")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackfillOriginURLAlreadySetIsNoOp(t *testing.T) {
	t.Parallel()

	store, mock := newTestJobStore(t)

	// The conditional UPDATE touches nothing when a concurrent invocation
	// already attached an origin URL; the record still exists, so no error.
	mock.ExpectExec("UPDATE job_postings SET origin_url").
		WithArgs("job-1", "https://ca.indeed.com/rc/clk?jk=late", testTime).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	err := store.BackfillOriginURL(context.Background(), "job-1", "https://ca.indeed.com/rc/clk?jk=late")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackfillOriginURLMissingRecord(t *testing.T) {
	t.Parallel()

	store, mock := newTestJobStore(t)

	mock.ExpectExec("UPDATE job_postings SET origin_url").
		WithArgs("ghost", "https://ca.indeed.com/viewjob?jk=abc123", testTime).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	err := store.BackfillOriginURL(context.Background(), "ghost", "https://ca.indeed.com/viewjob?jk=abc123")
	require.ErrorIs(t, err, ingest.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeParsedFieldsPartial(t *testing.T) {
	t.Parallel()

	store, mock := newTestJobStore(t)

	title := "Staff Engineer"
	company := "Acme"

	mock.ExpectExec(`UPDATE job_postings SET title = \$2, company_name = \$3, updated_at = \$4 WHERE id = \$1`).
		WithArgs("job-1", title, company, testTime).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.MergeParsedFields(context.Background(), "job-1", ingest.ParsedFields{
		Title:       &title,
		CompanyName: &company,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeParsedFieldsAllFields(t *testing.T) {
	t.Parallel()

	store, mock := newTestJobStore(t)

	title := "Staff Engineer"
	company := "Acme"
	location := "Toronto, ON"
	description := "Build things."
	posted := testTime.Add(-72 * time.Hour)

	mock.ExpectExec("UPDATE job_postings SET title").
		WithArgs("job-1", title, company, location, description, posted, testTime).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.MergeParsedFields(context.Background(), "job-1", ingest.ParsedFields{
		Title:       &title,
		CompanyName: &company,
		Location:    &location,
		Description: &description,
		PostedAt:    &posted,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
