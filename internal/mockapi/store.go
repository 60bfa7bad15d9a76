package mockapi

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"ranking-service/internal/ranking"
)

var (
	errNamespaceNotFound = errors.New("ranking not found")
	errItemNotFound      = errors.New("music not found")
)

// memoryStore keeps every ranking in memory. It does no vote validation:
// the client-side ledger is the only guard.
type memoryStore struct {
	mu    sync.RWMutex
	items map[string]map[string]*ranking.Item
}

func newMemoryStore(namespaces []string) *memoryStore {
	s := &memoryStore{items: make(map[string]map[string]*ranking.Item)}
	for _, ns := range namespaces {
		s.items[ns] = make(map[string]*ranking.Item)
	}
	return s
}

func (s *memoryStore) list(ns string) ([]ranking.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket, ok := s.items[ns]
	if !ok {
		return nil, errNamespaceNotFound
	}
	out := make([]ranking.Item, 0, len(bucket))
	for _, it := range bucket {
		out = append(out, *it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].VoteCount != out[j].VoteCount {
			return out[i].VoteCount > out[j].VoteCount
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// create adds an item carrying the creator's vote.
func (s *memoryStore) create(ns, name, artist string) (ranking.Item, error) {
	return s.insert(ns, ranking.Item{
		ID:        newID(),
		Name:      strings.TrimSpace(name),
		Artist:    strings.TrimSpace(artist),
		VoteCount: 1,
	})
}

func (s *memoryStore) insert(ns string, it ranking.Item) (ranking.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.items[ns]
	if !ok {
		return ranking.Item{}, errNamespaceNotFound
	}
	bucket[it.ID] = &it
	return it, nil
}

func (s *memoryStore) vote(ns, id string) (ranking.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.findLocked(ns, id)
	if err != nil {
		return ranking.Item{}, err
	}
	it.VoteCount++
	return *it, nil
}

func (s *memoryStore) update(ns, id, name, artist string) (ranking.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.findLocked(ns, id)
	if err != nil {
		return ranking.Item{}, err
	}
	it.Name = strings.TrimSpace(name)
	it.Artist = strings.TrimSpace(artist)
	return *it, nil
}

func (s *memoryStore) remove(ns, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.findLocked(ns, id); err != nil {
		return err
	}
	delete(s.items[ns], id)
	return nil
}

func (s *memoryStore) findLocked(ns, id string) (*ranking.Item, error) {
	bucket, ok := s.items[ns]
	if !ok {
		return nil, errNamespaceNotFound
	}
	it, ok := bucket[id]
	if !ok {
		return nil, errItemNotFound
	}
	return it, nil
}

func sampleItems() []ranking.Item {
	return []ranking.Item{
		{Name: "Asa Branca", Artist: "Luiz Gonzaga", VoteCount: 4},
		{Name: "São João na Roça", Artist: "Luiz Gonzaga", VoteCount: 2},
		{Name: "Garota de Ipanema", Artist: "Tom Jobim", VoteCount: 2},
		{Name: "Aquarela do Brasil", Artist: "Ary Barroso", VoteCount: 1},
	}
}
