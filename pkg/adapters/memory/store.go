package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ngabopay/ussdpilot/pkg/domain"
)

// Store implements ports.ResultStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.Result
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.Result),
	}
}

// Save keeps a copy of the result, keyed by session ID.
func (s *Store) Save(ctx context.Context, r domain.Result) error {
	// Copy the log so later mutation by the caller cannot leak in.
	r.ScreenLog = r.ScreenLog.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[r.SessionID] = r
	return nil
}

// Load retrieves a result by session ID.
func (s *Store) Load(ctx context.Context, sessionID string) (domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[sessionID]
	if !ok {
		return domain.Result{}, domain.ErrResultNotFound
	}
	r.ScreenLog = r.ScreenLog.Clone()
	return r, nil
}

// List returns stored session IDs, most recently finished first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]domain.Result, 0, len(s.data))
	for _, r := range s.data {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].FinishedAt.Equal(results[j].FinishedAt) {
			return results[i].SessionID < results[j].SessionID
		}
		return results[i].FinishedAt.After(results[j].FinishedAt)
	})

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.SessionID
	}
	return ids, nil
}
