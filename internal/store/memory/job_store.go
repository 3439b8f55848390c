package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/tofino/jobsite-crawler/internal/ingest"
)

// JobStore keeps job records in maps with the same secondary lookups the
// production store provides.
type JobStore struct {
	mu      sync.RWMutex
	clock   ingest.Clock
	records map[string]ingest.JobRecord
}

// NewJobStore constructs an empty store.
func NewJobStore(clock ingest.Clock) *JobStore {
	return &JobStore{
		clock:   clock,
		records: make(map[string]ingest.JobRecord),
	}
}

// FindByOriginURL returns the record whose origin URL matches, or nil.
func (s *JobStore) FindByOriginURL(_ context.Context, originURL string) (*ingest.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if originURL == "" {
		return nil, nil
	}
	for _, rec := range s.records {
		if rec.OriginURL == originURL {
			out := rec
			return &out, nil
		}
	}
	return nil, nil
}

// FindByExternalID returns the record for (source, externalID), or nil.
func (s *JobStore) FindByExternalID(_ context.Context, source, externalID string) (*ingest.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if externalID == "" {
		return nil, nil
	}
	for _, rec := range s.records {
		if rec.Source == source && rec.ExternalID == externalID {
			out := rec
			return &out, nil
		}
	}
	return nil, nil
}

// Create writes a new record, assigning an id when absent.
func (s *JobStore) Create(_ context.Context, rec ingest.JobRecord) (ingest.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if _, exists := s.records[rec.ID]; exists {
		return ingest.JobRecord{}, errors.New("job record already exists")
	}
	now := s.clock.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.records[rec.ID] = rec
	return rec, nil
}

// BackfillOriginURL attaches the origin URL to an existing record, but only
// while it is still unset. A populated value always wins over a late writer.
func (s *JobStore) BackfillOriginURL(_ context.Context, id, originURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return ingest.ErrNotFound
	}
	if rec.OriginURL != "" {
		return nil
	}
	rec.OriginURL = originURL
	rec.UpdatedAt = s.clock.Now()
	s.records[id] = rec
	return nil
}

// MergeParsedFields writes only the supplied fields plus UpdatedAt.
func (s *JobStore) MergeParsedFields(_ context.Context, id string, fields ingest.ParsedFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return ingest.ErrNotFound
	}
	if fields.Title != nil {
		rec.Title = *fields.Title
	}
	if fields.CompanyName != nil {
		rec.CompanyName = *fields.CompanyName
	}
	if fields.Location != nil {
		rec.Location = *fields.Location
	}
	if fields.Description != nil {
		rec.Description = *fields.Description
	}
	if fields.PostedAt != nil {
		posted := *fields.PostedAt
		rec.PostedAt = &posted
	}
	rec.UpdatedAt = s.clock.Now()
	s.records[id] = rec
	return nil
}

// Get returns a record by id, or nil. Used by tests to inspect state.
func (s *JobStore) Get(id string) *ingest.JobRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	out := rec
	return &out
}

// Len reports how many records exist.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
