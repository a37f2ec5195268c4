package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/rgehrsitz/finsight/internal/codec"
)

// MemoryStore is a Store backed by a map. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string][]byte
	subs   map[string]map[int]chan Event
	nextID int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string][]byte),
		subs: make(map[string]map[int]chan Event),
	}
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, key string, dst interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	data, ok := m.docs[key]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err := codec.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", key, err)
	}
	return nil
}

// Put implements Store.
func (m *MemoryStore) Put(ctx context.Context, key string, value interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.write(key, data)
	return nil
}

// Update implements Store. The read, fn and the write all run under the
// write lock.
func (m *MemoryStore) Update(ctx context.Context, key string, dst interface{}, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	resetValue(dst)
	if data, ok := m.docs[key]; ok {
		if err := codec.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("failed to decode document %s: %w", key, err)
		}
	}
	if err := fn(); err != nil {
		return err
	}
	data, err := codec.Marshal(dst)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", key, err)
	}
	m.write(key, data)
	return nil
}

// write stores data and fans it out. The caller holds m.mu.
func (m *MemoryStore) write(key string, data []byte) {
	m.docs[key] = data
	for _, ch := range m.subs[key] {
		select {
		case ch <- Event{Key: key, Data: data}:
		default:
		}
	}
}

// Subscribe implements Store.
func (m *MemoryStore) Subscribe(ctx context.Context, key string) (<-chan Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := make(chan Event, subscriptionBuffer)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	if m.subs[key] == nil {
		m.subs[key] = make(map[int]chan Event)
	}
	m.subs[key][id] = ch
	if data, ok := m.docs[key]; ok {
		ch <- Event{Key: key, Data: data}
	}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs[key], id)
		if len(m.subs[key]) == 0 {
			delete(m.subs, key)
		}
		close(ch)
	}()
	return ch, nil
}

// Len returns the number of stored documents.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
