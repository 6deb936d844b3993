// Package memory holds the bounded stream of observations an agent keeps
// across blocks.
package memory

import "sync"

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 100

// Memory is a FIFO stream of entries. Once full, the oldest entry is dropped
// for every new one.
type Memory struct {
	stream   []string
	capacity int
	mu       sync.RWMutex
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{
		stream:   make([]string, 0, capacity),
		capacity: capacity,
	}
}

// Store appends an entry, evicting the oldest one when over capacity.
func (m *Memory) Store(entry string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stream = append(m.stream, entry)
	if over := len(m.stream) - m.capacity; over > 0 {
		m.stream = append(m.stream[:0], m.stream[over:]...)
	}
}

// All returns a copy of every entry, oldest first.
func (m *Memory) All() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]string, len(m.stream))
	copy(entries, m.stream)
	return entries
}

// Recent returns a copy of at most n of the newest entries, oldest first.
func (m *Memory) Recent(n int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 {
		return []string{}
	}
	start := len(m.stream) - n
	if start < 0 {
		start = 0
	}
	entries := make([]string, len(m.stream)-start)
	copy(entries, m.stream[start:])
	return entries
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stream)
}
