package storage

import "sync"

// Memory is an in-process Store. Several SDK sessions sharing one Memory
// behave like browser tabs sharing localStorage.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
	subs   subscribers
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	old, existed := m.values[key]
	m.values[key] = value
	m.mu.Unlock()

	if !existed || old != value {
		m.subs.publish(Change{Key: key, OldValue: old, NewValue: value})
	}
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	old, existed := m.values[key]
	delete(m.values, key)
	m.mu.Unlock()

	if existed {
		m.subs.publish(Change{Key: key, OldValue: old, Removed: true})
	}
	return nil
}

func (m *Memory) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.values), nil
}

func (m *Memory) Subscribe(fn func(Change)) func() {
	return m.subs.add(fn)
}
