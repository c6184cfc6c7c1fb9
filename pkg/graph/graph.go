// Package graph indexes commit ancestry. Every commit known to a repository
// has a record holding its parent and child edges and free-form string
// properties, among them the sparse flag marking commits whose history is
// not fully present locally.
//
// The graph does not serialize writers against each other beyond single
// operations: callers must not run Rebuild concurrently with PutParents.
package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/odvcencio/geogot/pkg/object"
)

// SparseProperty is the property set on commits whose ancestry is not
// fully materialized.
const SparseProperty = "sparse"

const (
	maxTraversalSteps = 1_000_000
	maxTraversalDepth = 1_000_000
)

// ErrTraversalLimit is returned when an ancestry query walks more commits
// than the configured limits allow.
var ErrTraversalLimit = errors.New("graph traversal limit exceeded")

// Options configures a Graph.
type Options struct {
	// MaxSteps and MaxDepth bound ancestry traversals. Zero or values above
	// the built-in maximum select the maximum.
	MaxSteps int
	MaxDepth int
	Logger   *slog.Logger
}

// Graph is the commit ancestry index.
type Graph struct {
	mu       sync.Mutex
	backend  Backend
	maxSteps int
	maxDepth int
	logger   *slog.Logger
	state    *traversalState
}

// New returns a graph over backend.
func New(backend Backend, opts Options) *Graph {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Graph{
		backend:  backend,
		maxSteps: normalizeLimit(opts.MaxSteps, maxTraversalSteps),
		maxDepth: normalizeLimit(opts.MaxDepth, maxTraversalDepth),
		logger:   logger,
		state:    newTraversalState(),
	}
}

// NewMemory returns a graph over a fresh MemoryBackend.
func NewMemory() *Graph {
	return New(NewMemoryBackend(), Options{})
}

func normalizeLimit(limit, hardMax int) int {
	if limit <= 0 || limit > hardMax {
		return hardMax
	}
	return limit
}

func (g *Graph) stepsLimitError() error {
	return fmt.Errorf("%w: more than %d steps", ErrTraversalLimit, g.maxSteps)
}

func (g *Graph) depthLimitError() error {
	return fmt.Errorf("%w: deeper than %d commits", ErrTraversalLimit, g.maxDepth)
}

// Close closes the backend.
func (g *Graph) Close() error { return g.backend.Close() }

// Record returns the record of id, if one exists.
func (g *Graph) Record(id object.Hash) (Record, bool, error) {
	return g.backend.Get(id)
}

// PutParents records the parents of commit. It is idempotent and reports
// whether anything changed.
func (g *Graph) PutParents(commit object.Hash, parents []object.Hash) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, _, err := g.backend.Get(commit)
	if err != nil {
		return false, err
	}
	if rec.Indexed && slices.Equal(rec.Parents, parents) {
		return false, nil
	}

	for _, old := range rec.Parents {
		if slices.Contains(parents, old) {
			continue
		}
		if err := g.unlinkChild(old, commit); err != nil {
			return false, err
		}
	}
	rec.Commit = commit
	rec.Parents = slices.Clone(parents)
	rec.Indexed = true
	if err := g.backend.Put(rec); err != nil {
		return false, err
	}
	for _, p := range parents {
		if err := g.linkChild(p, commit); err != nil {
			return false, err
		}
	}
	g.state.reset()
	return true, nil
}

func (g *Graph) linkChild(parent, child object.Hash) error {
	rec, ok, err := g.backend.Get(parent)
	if err != nil {
		return err
	}
	if !ok {
		rec = Record{Commit: parent}
	}
	if slices.Contains(rec.Children, child) {
		return nil
	}
	rec.Children = append(rec.Children, child)
	slices.Sort(rec.Children)
	return g.backend.Put(rec)
}

func (g *Graph) unlinkChild(parent, child object.Hash) error {
	rec, ok, err := g.backend.Get(parent)
	if err != nil || !ok {
		return err
	}
	i := slices.Index(rec.Children, child)
	if i < 0 {
		return nil
	}
	rec.Children = slices.Delete(rec.Children, i, i+1)
	return g.backend.Put(rec)
}

// Exists reports whether the parents of id have been recorded.
func (g *Graph) Exists(id object.Hash) (bool, error) {
	rec, ok, err := g.backend.Get(id)
	return ok && rec.Indexed, err
}

// Parents returns the recorded parents of id. Unknown commits have none.
func (g *Graph) Parents(id object.Hash) ([]object.Hash, error) {
	rec, _, err := g.backend.Get(id)
	if err != nil {
		return nil, err
	}
	return rec.Parents, nil
}

// Parent returns the nth parent of id, counting from 1. Parent 0 is id
// itself.
func (g *Graph) Parent(id object.Hash, n int) (object.Hash, bool, error) {
	if n < 0 {
		return "", false, fmt.Errorf("graph parent %s: negative index %d", id, n)
	}
	if n == 0 {
		return id, true, nil
	}
	parents, err := g.Parents(id)
	if err != nil {
		return "", false, err
	}
	if n > len(parents) {
		return "", false, nil
	}
	return parents[n-1], true, nil
}

// Children returns the commits recorded with id as a parent, sorted.
func (g *Graph) Children(id object.Hash) ([]object.Hash, error) {
	rec, _, err := g.backend.Get(id)
	if err != nil {
		return nil, err
	}
	return rec.Children, nil
}

// SetProperty sets a property on id, creating an unindexed record if the
// commit is not known yet.
func (g *Graph) SetProperty(id object.Hash, key, value string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok, err := g.backend.Get(id)
	if err != nil {
		return err
	}
	if !ok {
		rec = Record{Commit: id}
	}
	if rec.Properties == nil {
		rec.Properties = make(map[string]string)
	}
	rec.Properties[key] = value
	return g.backend.Put(rec)
}

// Property returns a property of id.
func (g *Graph) Property(id object.Hash, key string) (string, bool, error) {
	rec, _, err := g.backend.Get(id)
	if err != nil {
		return "", false, err
	}
	v, ok := rec.Properties[key]
	return v, ok, nil
}

// SetSparse flags id as having incomplete local history.
func (g *Graph) SetSparse(id object.Hash) error {
	return g.SetProperty(id, SparseProperty, "true")
}

// IsSparse reports whether id carries the sparse flag.
func (g *Graph) IsSparse(id object.Hash) (bool, error) {
	v, _, err := g.Property(id, SparseProperty)
	return v == "true", err
}

// Truncate removes every record, returning all commits to unindexed.
func (g *Graph) Truncate() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.reset()
	return g.backend.Truncate()
}
