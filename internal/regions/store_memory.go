package regions

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is the in-memory twin of PostgresStore, for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	regions map[string]Region
}

// NewMemoryStore constructs an empty in-memory region store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{regions: make(map[string]Region)}
}

func (s *MemoryStore) Missing(_ context.Context, geoids []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	missing := []string{}
	for _, geoid := range geoids {
		if _, ok := s.regions[geoid]; !ok {
			missing = append(missing, geoid)
		}
	}
	sort.Strings(missing)
	return missing, nil
}

func (s *MemoryStore) Load(_ context.Context, rows []Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.regions[r.GEOID] = r
	}
	return nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.regions), nil
}
