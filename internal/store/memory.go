package store

import (
	"context"
	"sort"
	"sync"

	"github.com/Nikhilraj155/project-managment/internal/ingest"
	"github.com/google/uuid"
)

// Memory is an in-memory ingest.Store used by tests and local development.
// It mirrors the Postgres store's semantics: batch-granular atomicity,
// uploaded_at-descending listings, and not-found on missing identifiers.
type Memory struct {
	mu      sync.RWMutex
	records map[string]ingest.AllocationRecord
	order   []string // insertion order, for stable iteration
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]ingest.AllocationRecord)}
}

// InsertRecords stores all records, assigning UUID identifiers.
func (s *Memory) InsertRecords(_ context.Context, records []ingest.AllocationRecord) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(records))
	for i, r := range records {
		id := uuid.New().String()
		r.ID = id
		s.records[id] = r
		s.order = append(s.order, id)
		ids[i] = id
	}
	return ids, nil
}

// AllRecords returns every stored record in insertion order.
func (s *Memory) AllRecords(_ context.Context) ([]ingest.AllocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ingest.AllocationRecord, 0, len(s.order))
	for _, id := range s.order {
		if r, ok := s.records[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListRecords returns up to limit records ordered by uploaded_at descending.
func (s *Memory) ListRecords(ctx context.Context, limit int) ([]ingest.AllocationRecord, error) {
	all, _ := s.AllRecords(ctx)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].UploadedAt > all[j].UploadedAt
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// GetRecord fetches one record by identifier.
func (s *Memory) GetRecord(_ context.Context, id string) (ingest.AllocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return ingest.AllocationRecord{}, ingest.ErrRecordNotFound
	}
	return r, nil
}

// UpdateRecord applies a partial update to one record.
func (s *Memory) UpdateRecord(_ context.Context, id string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return ingest.ErrRecordNotFound
	}

	for col, val := range fields {
		switch col {
		case "team_name":
			r.TeamName = val
		case "title_1":
			r.Title1 = val
		case "guide_name":
			r.GuideName = val
		case "student_name":
			r.StudentName = val
		case "group_no":
			r.GroupNo = val
		case "enrollment_no":
			r.EnrollmentNo = val
		}
	}

	s.records[id] = r
	return nil
}

// DeleteBatch removes every record sharing batch_id.
func (s *Memory) DeleteBatch(_ context.Context, batchID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	kept := s.order[:0]
	for _, id := range s.order {
		if r, ok := s.records[id]; ok && r.BatchID == batchID {
			delete(s.records, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return deleted, nil
}
