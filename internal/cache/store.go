package cache

import (
	"archcheck/internal/graph"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Store holds imported graphs for the process-wide tier. Implementations
// may drop entries at any time; a miss only ever costs a re-import.
type Store interface {
	Get(key Key) (*graph.Graph, bool)
	Add(key Key, g *graph.Graph)
	Remove(key Key)
	Purge()
	Len() int
}

// LRUStore keeps the most recently used graphs up to a fixed count.
type LRUStore struct {
	cache *lru.Cache[Key, *graph.Graph]
}

// NewLRUStore creates a store holding at most size graphs.
func NewLRUStore(size int) (*LRUStore, error) {
	c, err := lru.New[Key, *graph.Graph](size)
	if err != nil {
		return nil, err
	}
	return &LRUStore{cache: c}, nil
}

func (s *LRUStore) Get(key Key) (*graph.Graph, bool) { return s.cache.Get(key) }
func (s *LRUStore) Add(key Key, g *graph.Graph)      { s.cache.Add(key, g) }
func (s *LRUStore) Remove(key Key)                   { s.cache.Remove(key) }
func (s *LRUStore) Purge()                           { s.cache.Purge() }
func (s *LRUStore) Len() int                         { return s.cache.Len() }
