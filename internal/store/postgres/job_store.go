package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/tofino/jobsite-crawler/internal/ingest"
)

// JobStore persists deduplicated job records in Postgres.
// It assumes a table schema like:
//
//	CREATE TABLE job_postings (
//		id TEXT PRIMARY KEY,
//		source TEXT NOT NULL,
//		external_id TEXT,
//		url TEXT,
//		origin_url TEXT,
//		title TEXT,
//		company_name TEXT,
//		location_string TEXT,
//		job_description TEXT,
//		posted_at TIMESTAMPTZ,
//		created_at TIMESTAMPTZ NOT NULL,
//		updated_at TIMESTAMPTZ NOT NULL,
//		UNIQUE (source, external_id)
//	);
//	CREATE UNIQUE INDEX idx_job_postings_origin_url
//		ON job_postings (origin_url) WHERE origin_url IS NOT NULL;
//
// Empty strings are stored as NULL so the partial unique indexes only bind
// populated values.
type JobStore struct {
	pool  dbPool
	clock ingest.Clock
	ids   ingest.IDGenerator
}

// NewJobStore constructs a store from an existing pool.
func NewJobStore(pool dbPool, clock ingest.Clock, ids ingest.IDGenerator) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if ids == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	return &JobStore{pool: pool, clock: clock, ids: ids}, nil
}

const jobColumns = `id, source, COALESCE(external_id, ''), COALESCE(url, ''), COALESCE(origin_url, ''),
COALESCE(title, ''), COALESCE(company_name, ''), COALESCE(location_string, ''),
COALESCE(job_description, ''), posted_at, created_at, updated_at`

// FindByOriginURL returns the record whose origin URL matches, or nil.
func (s *JobStore) FindByOriginURL(ctx context.Context, originURL string) (*ingest.JobRecord, error) {
	if originURL == "" {
		return nil, nil
	}
	row := s.pool.QueryRow(ctx,
		"SELECT "+jobColumns+" FROM job_postings WHERE origin_url = $1", originURL)
	return scanJob(row)
}

// FindByExternalID returns the record for (source, externalID), or nil.
func (s *JobStore) FindByExternalID(ctx context.Context, source, externalID string) (*ingest.JobRecord, error) {
	if externalID == "" {
		return nil, nil
	}
	row := s.pool.QueryRow(ctx,
		"SELECT "+jobColumns+" FROM job_postings WHERE source = $1 AND external_id = $2",
		source, externalID)
	return scanJob(row)
}

// Create writes a new record, assigning an id when rec.ID is empty and
// stamping CreatedAt/UpdatedAt.
func (s *JobStore) Create(ctx context.Context, rec ingest.JobRecord) (ingest.JobRecord, error) {
	if rec.ID == "" {
		id, err := s.ids.NewID()
		if err != nil {
			return ingest.JobRecord{}, fmt.Errorf("assign job id: %w", err)
		}
		rec.ID = id
	}
	now := s.clock.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_postings (id, source, external_id, url, origin_url,
title, company_name, location_string, job_description, posted_at, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''),
NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10, $11, $11)`,
		rec.ID, rec.Source, rec.ExternalID, rec.URL, rec.OriginURL,
		rec.Title, rec.CompanyName, rec.Location, rec.Description, rec.PostedAt, now)
	if err != nil {
		return ingest.JobRecord{}, fmt.Errorf("insert job posting: %w", err)
	}
	return rec, nil
}

// BackfillOriginURL attaches the origin URL to an existing record, but only
// while it is still unset. Two invocations racing on the same record both
// pass the coordinator's read check; the guard in the UPDATE makes the first
// writer win and the second a no-op instead of an overwrite.
func (s *JobStore) BackfillOriginURL(ctx context.Context, id, originURL string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE job_postings SET origin_url = $2, updated_at = $3 WHERE id = $1 AND origin_url IS NULL",
		id, originURL, s.clock.Now())
	if err != nil {
		return fmt.Errorf("backfill origin url: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Zero rows means the record is gone or the origin URL is already set;
	// only the former is an error.
	var exists bool
	err = s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM job_postings WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("backfill origin url: %w", err)
	}
	if !exists {
		return ingest.ErrNotFound
	}
	return nil
}

// MergeParsedFields writes only the supplied fields, always refreshing
// updated_at. The SET list is assembled from the field mapping so absent
// fields never touch their columns.
func (s *JobStore) MergeParsedFields(ctx context.Context, id string, fields ingest.ParsedFields) error {
	args := []any{id}
	var sets []string
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if fields.Title != nil {
		set("title", *fields.Title)
	}
	if fields.CompanyName != nil {
		set("company_name", *fields.CompanyName)
	}
	if fields.Location != nil {
		set("location_string", *fields.Location)
	}
	if fields.Description != nil {
		set("job_description", *fields.Description)
	}
	if fields.PostedAt != nil {
		set("posted_at", *fields.PostedAt)
	}
	set("updated_at", s.clock.Now())

	query := "UPDATE job_postings SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("merge parsed fields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ingest.ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*ingest.JobRecord, error) {
	var rec ingest.JobRecord
	err := row.Scan(
		&rec.ID, &rec.Source, &rec.ExternalID, &rec.URL, &rec.OriginURL,
		&rec.Title, &rec.CompanyName, &rec.Location, &rec.Description,
		&rec.PostedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan job posting: %w", err)
	}
	return &rec, nil
}
