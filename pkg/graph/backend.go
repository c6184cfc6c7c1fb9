package graph

import (
	"sort"
	"sync"

	"github.com/odvcencio/geogot/pkg/object"
)

// Record is the index entry of one commit.
type Record struct {
	Commit   object.Hash   `json:"commit"`
	Parents  []object.Hash `json:"parents,omitempty"`
	Children []object.Hash `json:"children,omitempty"`
	// Indexed is set once the parents of the commit have been recorded.
	// Records created only to hang child edges or properties on are not
	// indexed, and their Parents are empty.
	Indexed    bool              `json:"indexed"`
	Properties map[string]string `json:"properties,omitempty"`
}

func (r Record) clone() Record {
	c := r
	c.Parents = append([]object.Hash(nil), r.Parents...)
	c.Children = append([]object.Hash(nil), r.Children...)
	if r.Properties != nil {
		c.Properties = make(map[string]string, len(r.Properties))
		for k, v := range r.Properties {
			c.Properties[k] = v
		}
	}
	return c
}

// Backend stores graph records keyed by commit id.
type Backend interface {
	Get(id object.Hash) (Record, bool, error)
	Put(rec Record) error
	// Truncate removes every record.
	Truncate() error
	// Iterate visits every record in commit id order.
	Iterate(fn func(Record) error) error
	Close() error
}

// MemoryBackend keeps records in a map.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[object.Hash]Record
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[object.Hash]Record)}
}

func (m *MemoryBackend) Get(id object.Hash) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return Record{}, false, nil
	}
	return rec.clone(), true, nil
}

func (m *MemoryBackend) Put(rec Record) error {
	m.mu.Lock()
	m.records[rec.Commit] = rec.clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Truncate() error {
	m.mu.Lock()
	m.records = make(map[object.Hash]Record)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Iterate(fn func(Record) error) error {
	m.mu.RLock()
	recs := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		recs = append(recs, rec.clone())
	}
	m.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool { return recs[i].Commit < recs[j].Commit })
	for _, rec := range recs {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
