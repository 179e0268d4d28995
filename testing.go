package miscutils

// This file provides test doubles for use in examples and external tests.

import (
	"bytes"
	"context"
	"sync"
)

// MemoryStore is an in-memory Store. ReadErr and WriteErr, when set, are
// returned by the next and every following call.
type MemoryStore struct {
	mu       sync.Mutex
	data     []byte
	writes   int
	ReadErr  error
	WriteErr error
}

// NewMemoryStore returns a store holding a copy of data.
func NewMemoryStore(data []byte) *MemoryStore {
	return &MemoryStore{data: bytes.Clone(data)}
}

func (m *MemoryStore) ReadBytes(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return bytes.Clone(m.data), nil
}

func (m *MemoryStore) WriteBytes(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.data = bytes.Clone(data)
	m.writes++
	return nil
}

// Bytes returns a copy of the stored bytes.
func (m *MemoryStore) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bytes.Clone(m.data)
}

// Writes counts successful WriteBytes calls.
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// NewTestSerializer returns a Serializer over a fresh MemoryStore.
func NewTestSerializer(opts ...Option) (*Serializer, *MemoryStore, error) {
	store := NewMemoryStore(nil)
	s, err := NewSerializer(store, opts...)
	if err != nil {
		return nil, nil, err
	}
	return s, store, nil
}
