// Package memory provides an in-memory batch status store for tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mcslab/transbatch-cli/internal/core/domain"
	"github.com/mcslab/transbatch-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.BatchStatusStore = (*Store)(nil)

// Store is an in-memory BatchStatusStore.
type Store struct {
	mu      sync.RWMutex
	records map[string]domain.BatchRecord
}

// NewStore creates an empty in-memory status store.
func NewStore() *Store {
	return &Store{records: make(map[string]domain.BatchRecord)}
}

// Save stores or updates the record, keyed by batch file name.
func (s *Store) Save(_ context.Context, rec *domain.BatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.File] = *rec
	return nil
}

// Get retrieves the record for a batch file, or nil if it has never
// been saved.
func (s *Store) Get(_ context.Context, file string) (*domain.BatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[file]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// List returns all records ordered by batch file name.
func (s *Store) List(_ context.Context) ([]domain.BatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]domain.BatchRecord, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].File < records[j].File })
	return records, nil
}

// Delete removes the record for a batch file.
func (s *Store) Delete(_ context.Context, file string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, file)
	return nil
}
