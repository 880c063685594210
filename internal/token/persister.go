package token

import (
	"errors"
	"sync"
)

// ErrNotFound is returned by a Persister when the key holds no value
var ErrNotFound = errors.New("key not found")

// Persister is the durable key-value capability the token gateway writes through.
// Implementations decide the medium (OS keychain, local file, memory).
type Persister interface {
	Get(key string) (string, error)
	Set(key, value string) error
	// Remove deletes key. Removing a missing key returns nil.
	Remove(key string) error
}

// MemoryPersister keeps values in process memory. Used in tests and for
// ephemeral sessions that must not outlive the process.
type MemoryPersister struct {
	mu     sync.Mutex
	values map[string]string
}

var _ Persister = (*MemoryPersister)(nil)

// NewMemoryPersister creates an empty in-memory persister
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{values: make(map[string]string)}
}

func (m *MemoryPersister) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryPersister) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryPersister) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
