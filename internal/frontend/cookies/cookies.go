// Package cookies models the document cookie jar the client SDK writes its
// consent cookie to and clears tracking cookie families from.
package cookies

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Jar is a name-keyed cookie jar for a single site.
type Jar interface {
	Set(c *http.Cookie)
	Get(name string) (*http.Cookie, bool)
	Delete(name string)
	Names() []string
	// DeleteByPrefix removes every cookie whose name starts with prefix and
	// returns how many were removed.
	DeleteByPrefix(prefix string) int
}

// Memory is an in-process Jar. Expired cookies are never returned.
type Memory struct {
	mu      sync.Mutex
	cookies map[string]*http.Cookie
	now     func() time.Time
}

type Option func(*Memory)

// WithClock sets the time source used to evaluate expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

func NewMemory(opts ...Option) *Memory {
	m := &Memory{cookies: make(map[string]*http.Cookie), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Set stores c. A negative MaxAge or an Expires in the past deletes the
// cookie, as a browser would.
func (m *Memory) Set(c *http.Cookie) {
	if c == nil || c.Name == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.MaxAge < 0 || (!c.Expires.IsZero() && !c.Expires.After(m.now())) {
		delete(m.cookies, c.Name)
		return
	}
	stored := *c
	if c.MaxAge > 0 {
		stored.Expires = m.now().Add(time.Duration(c.MaxAge) * time.Second)
	}
	m.cookies[c.Name] = &stored
}

func (m *Memory) Get(name string) (*http.Cookie, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.live(name)
	if !ok {
		return nil, false
	}
	out := *c
	return &out, true
}

func (m *Memory) Delete(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cookies, name)
}

func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.cookies))
	for name := range m.cookies {
		if _, ok := m.live(name); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (m *Memory) DeleteByPrefix(prefix string) int {
	if prefix == "" {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for name := range m.cookies {
		if strings.HasPrefix(name, prefix) {
			delete(m.cookies, name)
			removed++
		}
	}
	return removed
}

// live must be called with m.mu held; it drops the cookie if it has expired.
func (m *Memory) live(name string) (*http.Cookie, bool) {
	c, ok := m.cookies[name]
	if !ok {
		return nil, false
	}
	if !c.Expires.IsZero() && !c.Expires.After(m.now()) {
		delete(m.cookies, name)
		return nil, false
	}
	return c, true
}
