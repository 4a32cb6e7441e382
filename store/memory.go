package store

import (
	"context"
	"sort"
	"sync"
)

type memStore struct {
	entries map[string][]byte
	created int64
}

// MemStorage is an in-memory Storage.
// It is used in tests and when no durable storage is configured.
type MemStorage struct {
	mutex  *sync.RWMutex
	db     map[string]*memStore
	serial *int64
}

func NewMemStorage() MemStorage {
	return MemStorage{
		mutex:  &sync.RWMutex{},
		db:     make(map[string]*memStore),
		serial: new(int64),
	}
}

func (m MemStorage) Open(ctx context.Context, name string) (Store, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.create(name)
	return memHandle{storage: m, name: name}, nil
}

func (m MemStorage) Handle(name string) Store {
	return memHandle{storage: m, name: name}
}

// create must be called with the write lock held.
func (m MemStorage) create(name string) *memStore {
	if s, ok := m.db[name]; ok {
		return s
	}
	*m.serial++
	s := &memStore{entries: make(map[string][]byte), created: *m.serial}
	m.db[name] = s
	return s
}

func (m MemStorage) Delete(ctx context.Context, name string) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, ok := m.db[name]
	delete(m.db, name)
	return ok, nil
}

func (m MemStorage) Keys(ctx context.Context) ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	names := make([]string, 0, len(m.db))
	for name := range m.db {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return m.db[names[i]].created < m.db[names[j]].created
	})
	return names, nil
}

type memHandle struct {
	storage MemStorage
	name    string
}

func (h memHandle) Name() string {
	return h.name
}

func (h memHandle) Match(ctx context.Context, key string) ([]byte, bool, error) {
	h.storage.mutex.RLock()
	defer h.storage.mutex.RUnlock()
	s, ok := h.storage.db[h.name]
	if !ok {
		return nil, false, nil
	}
	bytes, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), bytes...), true, nil
}

func (h memHandle) Put(ctx context.Context, key string, bytes []byte) error {
	h.storage.mutex.Lock()
	defer h.storage.mutex.Unlock()
	// copy so that the caller may reuse its buffer
	h.storage.create(h.name).entries[key] = append([]byte(nil), bytes...)
	return nil
}

func (h memHandle) Delete(ctx context.Context, key string) (bool, error) {
	h.storage.mutex.Lock()
	defer h.storage.mutex.Unlock()
	s, ok := h.storage.db[h.name]
	if !ok {
		return false, nil
	}
	_, ok = s.entries[key]
	delete(s.entries, key)
	return ok, nil
}

func (h memHandle) Keys(ctx context.Context) ([]string, error) {
	h.storage.mutex.RLock()
	defer h.storage.mutex.RUnlock()
	s, ok := h.storage.db[h.name]
	if !ok {
		return []string{}, nil
	}
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
