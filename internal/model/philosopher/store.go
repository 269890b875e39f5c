package philosopher

import "sort"

// Store exposes the read-only philosopher roster.
type Store interface {
	List() []Philosopher
	FindByID(id int) (Philosopher, bool)
}

// MemoryStore implements Store over a slice ordered by id.
type MemoryStore struct {
	items []Philosopher
	byID  map[int]int
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied philosophers.
func NewMemoryStore(items []Philosopher) *MemoryStore {
	sorted := append([]Philosopher(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	byID := make(map[int]int, len(sorted))
	for i, item := range sorted {
		byID[item.ID] = i
	}
	return &MemoryStore{items: sorted, byID: byID}
}

// List returns the roster in id order.
func (s *MemoryStore) List() []Philosopher {
	return append([]Philosopher(nil), s.items...)
}

// FindByID looks up a philosopher by identifier.
func (s *MemoryStore) FindByID(id int) (Philosopher, bool) {
	idx, ok := s.byID[id]
	if !ok {
		return Philosopher{}, false
	}
	return s.items[idx], true
}
