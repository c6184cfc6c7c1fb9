package object

import (
	"fmt"
	"sort"
	"sync"
)

// Backend persists raw object envelopes keyed by hash. Implementations must
// publish each object atomically: a Read that succeeds always returns the
// complete bytes of a finished Write. Write must be idempotent and durable
// before it returns.
type Backend interface {
	Write(h Hash, objType ObjectType, data []byte) error
	Read(h Hash) (ObjectType, []byte, error)
	Has(h Hash) (bool, error)
	Delete(h Hash) error
	// Iterate calls fn for every stored object. Iteration stops at the
	// first error fn returns.
	Iterate(fn func(h Hash, objType ObjectType) error) error
	Close() error
}

// MemoryBackend keeps objects in a map. It is safe for concurrent use.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[Hash]memoryObject
}

type memoryObject struct {
	objType ObjectType
	data    []byte
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: make(map[Hash]memoryObject)}
}

func (m *MemoryBackend) Write(h Hash, objType ObjectType, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[h]; ok {
		return nil
	}
	m.objects[h] = memoryObject{objType: objType, data: buf}
	return nil
}

func (m *MemoryBackend) Read(h Hash) (ObjectType, []byte, error) {
	m.mu.RLock()
	obj, ok := m.objects[h]
	m.mu.RUnlock()
	if !ok {
		return "", nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return obj.objType, out, nil
}

func (m *MemoryBackend) Has(h Hash) (bool, error) {
	m.mu.RLock()
	_, ok := m.objects[h]
	m.mu.RUnlock()
	return ok, nil
}

func (m *MemoryBackend) Delete(h Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[h]; !ok {
		return fmt.Errorf("object delete %s: %w", h, ErrNotFound)
	}
	delete(m.objects, h)
	return nil
}

// Iterate visits objects in hash order over a snapshot of the map.
func (m *MemoryBackend) Iterate(fn func(h Hash, objType ObjectType) error) error {
	m.mu.RLock()
	type item struct {
		h Hash
		t ObjectType
	}
	items := make([]item, 0, len(m.objects))
	for h, obj := range m.objects {
		items = append(items, item{h: h, t: obj.objType})
	}
	m.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].h < items[j].h })
	for _, it := range items {
		if err := fn(it.h, it.t); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
