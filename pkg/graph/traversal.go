package graph

import (
	"fmt"
	"sync"

	"github.com/odvcencio/geogot/pkg/object"
)

type mergeBaseCacheKey struct {
	left  object.Hash
	right object.Hash
}

type mergeBaseCacheEntry struct {
	base  object.Hash
	found bool
}

// traversalState memoizes generation numbers and merge bases between
// queries. Any change to the graph resets it.
type traversalState struct {
	mu sync.RWMutex

	generations map[object.Hash]uint64
	mergeBases  map[mergeBaseCacheKey]mergeBaseCacheEntry
}

func newTraversalState() *traversalState {
	return &traversalState{
		generations: make(map[object.Hash]uint64),
		mergeBases:  make(map[mergeBaseCacheKey]mergeBaseCacheEntry),
	}
}

func (s *traversalState) reset() {
	s.mu.Lock()
	s.generations = make(map[object.Hash]uint64)
	s.mergeBases = make(map[mergeBaseCacheKey]mergeBaseCacheEntry)
	s.mu.Unlock()
}

func canonicalMergeBaseCacheKey(a, b object.Hash) mergeBaseCacheKey {
	if a <= b {
		return mergeBaseCacheKey{left: a, right: b}
	}
	return mergeBaseCacheKey{left: b, right: a}
}

func (s *traversalState) loadMergeBase(a, b object.Hash) (mergeBaseCacheEntry, bool) {
	key := canonicalMergeBaseCacheKey(a, b)
	s.mu.RLock()
	entry, ok := s.mergeBases[key]
	s.mu.RUnlock()
	return entry, ok
}

func (s *traversalState) storeMergeBase(a, b, base object.Hash, found bool) {
	key := canonicalMergeBaseCacheKey(a, b)
	s.mu.Lock()
	s.mergeBases[key] = mergeBaseCacheEntry{base: base, found: found}
	s.mu.Unlock()
}

func (s *traversalState) loadGeneration(h object.Hash) (uint64, bool) {
	s.mu.RLock()
	gen, ok := s.generations[h]
	s.mu.RUnlock()
	return gen, ok
}

func (s *traversalState) storeGeneration(h object.Hash, gen uint64) {
	s.mu.Lock()
	s.generations[h] = gen
	s.mu.Unlock()
}

// generation returns 1 + the largest generation among the parents of h;
// commits without recorded parents have generation 1. A commit is never
// an ancestor of one with a lower generation.
func (g *Graph) generation(h object.Hash) (uint64, error) {
	if gen, ok := g.state.loadGeneration(h); ok {
		return gen, nil
	}

	type frame struct {
		id      object.Hash
		parents []object.Hash
		next    int
		max     uint64
	}
	visiting := map[object.Hash]bool{h: true}
	parents, err := g.Parents(h)
	if err != nil {
		return 0, err
	}
	stack := []*frame{{id: h, parents: parents}}
	for {
		top := stack[len(stack)-1]
		if top.next == len(top.parents) {
			gen := top.max + 1
			g.state.storeGeneration(top.id, gen)
			delete(visiting, top.id)
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return gen, nil
			}
			parent := stack[len(stack)-1]
			parent.max = max(parent.max, gen)
			parent.next++
			continue
		}

		p := top.parents[top.next]
		if gen, ok := g.state.loadGeneration(p); ok {
			top.max = max(top.max, gen)
			top.next++
			continue
		}
		if visiting[p] {
			return 0, fmt.Errorf("graph generation: cycle detected at %s", p)
		}
		if len(stack) > g.maxDepth {
			return 0, g.depthLimitError()
		}
		pp, err := g.Parents(p)
		if err != nil {
			return 0, err
		}
		visiting[p] = true
		stack = append(stack, &frame{id: p, parents: pp})
	}
}

type mergeBaseQueueItem struct {
	hash       object.Hash
	generation uint64
}

type mergeBaseMaxHeap []mergeBaseQueueItem

func (h mergeBaseMaxHeap) Len() int { return len(h) }

func (h mergeBaseMaxHeap) Less(i, j int) bool {
	if h[i].generation == h[j].generation {
		return h[i].hash < h[j].hash
	}
	return h[i].generation > h[j].generation
}

func (h mergeBaseMaxHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *mergeBaseMaxHeap) Push(x any) {
	*h = append(*h, x.(mergeBaseQueueItem))
}

func (h *mergeBaseMaxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (h mergeBaseMaxHeap) Peek() (mergeBaseQueueItem, bool) {
	if len(h) == 0 {
		return mergeBaseQueueItem{}, false
	}
	return h[0], true
}
