// Package kvstore provides local implementations of ports.KeyValueStore.
package kvstore

import (
	"sync"

	"github.com/target/inventory-console/internal/ports"
)

var (
	_ ports.KeyValueStore = (*Memory)(nil)
	_ ports.KeyValueStore = Unavailable{}
)

// Memory is an in-process store. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *Memory) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

func (m *Memory) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]string)
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Unavailable models a missing storage medium: nothing is ever stored.
type Unavailable struct{}

func (Unavailable) Get(string) (string, bool) { return "", false }
func (Unavailable) Set(string, string)        {}
func (Unavailable) Remove(string)             {}
func (Unavailable) Clear()                    {}
