// Package memory keeps visitor records in process memory. It is used when no DATABASE_URL is configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/codeturtle/turtle-web/internal/storage"
)

var _ storage.VisitorStore = (*Store)(nil)

type Store struct {
	mu      sync.RWMutex
	records map[string]storage.VisitorRecord
}

func New() *Store {
	return &Store{records: make(map[string]storage.VisitorRecord)}
}

func (s *Store) SaveVisitor(_ context.Context, rec storage.VisitorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	rec.Cookies = append([]storage.Cookie(nil), rec.Cookies...)
	if rec.User != nil {
		u := *rec.User
		rec.User = &u
	}
	s.records[rec.ID] = rec
	return nil
}

func (s *Store) FindVisitor(_ context.Context, id string) (storage.VisitorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return storage.VisitorRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

func (s *Store) DeleteVisitor(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *Store) PurgeVisitors(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, rec := range s.records {
		if rec.UpdatedAt.Before(before) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) Close() {}
