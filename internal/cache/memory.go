package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryEntry struct {
	data    []byte
	expires time.Time
	tags    []string
}

// Memory is an in-process Cache. Values are stored encoded so callers never
// share slices with the cache.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	byTag   map[string]map[string]struct{}
	gens    map[string]int64
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		byTag:   make(map[string]map[string]struct{}),
		gens:    make(map[string]int64),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if m.now().After(e.expires) {
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && m.now().After(cur.expires) {
			m.remove(key)
		}
		m.mu.Unlock()
		return false, nil
	}
	if err := json.Unmarshal(e.data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Memory) Set(_ context.Context, key string, value interface{}, tags ...string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.put(key, data, tags)
	return nil
}

func (m *Memory) Version(_ context.Context, tags ...string) (Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version(tags), nil
}

func (m *Memory) SetIfUnchanged(_ context.Context, key string, value interface{}, v Version, tags ...string) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !v.matches(m.version(tags)) {
		return false, nil
	}
	m.put(key, data, tags)
	return true, nil
}

// version and put expect the caller to hold mu.
func (m *Memory) version(tags []string) Version {
	v := make(Version, len(tags))
	for i, tag := range tags {
		v[i] = m.gens[tag]
	}
	return v
}

func (m *Memory) put(key string, data []byte, tags []string) {
	m.remove(key)
	m.entries[key] = memoryEntry{data: data, expires: m.now().Add(m.ttl), tags: tags}
	for _, tag := range tags {
		keys, ok := m.byTag[tag]
		if !ok {
			keys = make(map[string]struct{})
			m.byTag[tag] = keys
		}
		keys[key] = struct{}{}
	}
}

func (m *Memory) InvalidateTags(_ context.Context, tags ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tag := range tags {
		m.gens[tag]++
		for key := range m.byTag[tag] {
			m.remove(key)
		}
		delete(m.byTag, tag)
	}
	return nil
}

// remove drops key and its tag references. Caller holds mu.
func (m *Memory) remove(key string) {
	e, ok := m.entries[key]
	if !ok {
		return
	}
	delete(m.entries, key)
	for _, tag := range e.tags {
		if keys, ok := m.byTag[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(m.byTag, tag)
			}
		}
	}
}
