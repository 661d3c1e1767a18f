// Package cache memoizes derived values (water budgets, suitability scores). Entries
// are written once; any change in the inputs produces a different fingerprint and
// therefore a different key. A store holds at most its capacity and drops the
// oldest entries first.
package cache

import (
	"fmt"
	"sync"

	"github.com/mitchellh/hashstructure/v2"
	"golang.org/x/sync/singleflight"

	"acao/pkg/metrics"
)

type Key struct {
	FieldID     string
	CropID      string
	SeasonID    string
	Scenario    string
	Fingerprint uint64
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s|%s|%016x", k.FieldID, k.CropID, k.SeasonID, k.Scenario, k.Fingerprint)
}

// Fingerprint hashes the inputs a derived value depends on.
func Fingerprint(inputs ...any) (uint64, error) {
	return hashstructure.Hash(inputs, hashstructure.FormatV2, nil)
}

type Store[V any] struct {
	name  string
	max   int
	mu    sync.RWMutex
	items map[Key]V
	order []Key
	group singleflight.Group
}

// New returns a store holding at most max entries; max <= 0 means no limit.
func New[V any](name string, max int) *Store[V] {
	return &Store[V]{name: name, max: max, items: map[Key]V{}}
}

func (s *Store[V]) Get(k Key) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[k]
	return v, ok
}

// GetOrCompute returns the cached value for k, computing it at most once across
// concurrent callers. Errors are not cached.
func (s *Store[V]) GetOrCompute(k Key, compute func() (V, error)) (V, error) {
	if v, ok := s.Get(k); ok {
		metrics.CacheHit(s.name)
		return v, nil
	}
	metrics.CacheMiss(s.name)
	out, err, _ := s.group.Do(k.String(), func() (any, error) {
		if v, ok := s.Get(k); ok {
			return v, nil
		}
		v, err := compute()
		if err != nil {
			return v, err
		}
		s.mu.Lock()
		if _, ok := s.items[k]; !ok {
			s.put(k, v)
		}
		v = s.items[k]
		s.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return out.(V), nil
}

// put must be called with mu held.
func (s *Store[V]) put(k Key, v V) {
	for s.max > 0 && len(s.order) >= s.max {
		delete(s.items, s.order[0])
		s.order = s.order[1:]
		metrics.CacheEvict(s.name)
	}
	s.items[k] = v
	s.order = append(s.order, k)
}

func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
