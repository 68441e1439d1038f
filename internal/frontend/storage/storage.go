// Package storage provides the durable key/value store the client SDK keeps
// its consent record, audit log and visitor identity in.
package storage

import (
	"errors"
	"sort"
	"sync"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage closed")

// Change describes one key transition. External is set when the change was
// written by another process sharing the same backing file.
type Change struct {
	Key      string
	OldValue string
	NewValue string
	Removed  bool
	External bool
}

// Store is a string key/value store with change notification.
// Get reports ok=false for an absent key.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
	Keys() ([]string, error)
	Subscribe(fn func(Change)) (unsubscribe func())
}

// subscribers fans changes out to registered callbacks. Callbacks run
// synchronously on the writer's goroutine without any store lock held.
type subscribers struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(Change)
}

func (s *subscribers) add(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(Change))
	}
	id := s.nextID
	s.nextID++
	s.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers) publish(changes ...Change) {
	if len(changes) == 0 {
		return
	}
	s.mu.Lock()
	ids := make([]int, 0, len(s.fns))
	for id := range s.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.fns[id])
	}
	s.mu.Unlock()

	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}

// diff returns the changes that turn before into after.
func diff(before, after map[string]string, external bool) []Change {
	var out []Change
	for k, nv := range after {
		if ov, ok := before[k]; !ok || ov != nv {
			out = append(out, Change{Key: k, OldValue: ov, NewValue: nv, External: external})
		}
	}
	for k, ov := range before {
		if _, ok := after[k]; !ok {
			out = append(out, Change{Key: k, OldValue: ov, Removed: true, External: external})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
