package relation

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps pivot rows in process memory. It backs the "memory"
// relations store and tests.
type MemoryStore struct {
	mu    sync.Mutex
	links map[string][]*memoryLink // pivot table + parent key -> links in insertion order
}

type memoryLink struct {
	id       any
	position int
	ordered  bool
}

var _ PivotStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{links: make(map[string][]*memoryLink)}
}

func memoryKey(pivot Pivot, parentID any) string {
	return pivot.Table + "\x00" + Key(parentID)
}

// Seed links ids to parentID as if they had been attached earlier.
func (s *MemoryStore) Seed(pivot Pivot, parentID any, ids ...any) {
	_ = s.Attach(context.Background(), pivot, parentID, ids)
}

func (s *MemoryStore) Related(_ context.Context, pivot Pivot, parentID any) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	links := append([]*memoryLink(nil), s.links[memoryKey(pivot, parentID)]...)
	if pivot.SortColumn != "" {
		// Unordered links sort first, as NULLs do in an ascending SQL sort.
		sort.SliceStable(links, func(i, j int) bool {
			if links[i].ordered != links[j].ordered {
				return !links[i].ordered
			}
			return links[i].position < links[j].position
		})
	}
	ids := make([]any, len(links))
	for i, l := range links {
		ids[i] = l.id
	}
	return ids, nil
}

func (s *MemoryStore) Attach(_ context.Context, pivot Pivot, parentID any, ids []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey(pivot, parentID)
	existing := make(map[string]struct{}, len(s.links[key]))
	for _, l := range s.links[key] {
		existing[Key(l.id)] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := existing[Key(id)]; ok {
			continue
		}
		existing[Key(id)] = struct{}{}
		s.links[key] = append(s.links[key], &memoryLink{id: id})
	}
	return nil
}

func (s *MemoryStore) Detach(_ context.Context, pivot Pivot, parentID any, ids []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[Key(id)] = struct{}{}
	}
	key := memoryKey(pivot, parentID)
	kept := s.links[key][:0]
	for _, l := range s.links[key] {
		if _, ok := drop[Key(l.id)]; !ok {
			kept = append(kept, l)
		}
	}
	s.links[key] = kept
	return nil
}

func (s *MemoryStore) SetSortOrder(_ context.Context, pivot Pivot, parentID, id any, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.links[memoryKey(pivot, parentID)] {
		if Key(l.id) == Key(id) {
			l.position = position
			l.ordered = true
		}
	}
	return nil
}

// Positions returns the recorded sort order per related id. Links without
// a position are omitted.
func (s *MemoryStore) Positions(pivot Pivot, parentID any) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int)
	for _, l := range s.links[memoryKey(pivot, parentID)] {
		if l.ordered {
			out[Key(l.id)] = l.position
		}
	}
	return out
}
