package graph

import (
	"container/heap"

	"github.com/odvcencio/geogot/pkg/object"
)

type traversalQueueItem struct {
	hash  object.Hash
	depth int
}

// IsAncestor reports whether end is reachable from start by following
// parent edges. Every commit is its own ancestor.
func (g *Graph) IsAncestor(start, end object.Hash) (bool, error) {
	if start == end {
		return true, nil
	}
	if start == "" || end == "" {
		return false, nil
	}
	genStart, err := g.generation(start)
	if err != nil {
		return false, err
	}
	genEnd, err := g.generation(end)
	if err != nil {
		return false, err
	}
	return g.isAncestorWithGeneration(end, start, genEnd, genStart)
}

func (g *Graph) isAncestorWithGeneration(ancestor, descendant object.Hash, ancestorGeneration, descendantGeneration uint64) (bool, error) {
	if ancestor == descendant {
		return true, nil
	}
	if ancestorGeneration > descendantGeneration {
		return false, nil
	}

	visited := map[object.Hash]struct{}{descendant: {}}
	queue := []traversalQueueItem{{hash: descendant, depth: 0}}
	steps := 0

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		steps++
		if steps > g.maxSteps {
			return false, g.stepsLimitError()
		}

		cur := item.hash
		if cur == ancestor {
			return true, nil
		}
		curGeneration, err := g.generation(cur)
		if err != nil {
			return false, err
		}
		if curGeneration <= ancestorGeneration {
			continue
		}

		parents, err := g.Parents(cur)
		if err != nil {
			return false, err
		}
		for _, p := range parents {
			if _, seen := visited[p]; seen {
				continue
			}
			parentGeneration, err := g.generation(p)
			if err != nil {
				return false, err
			}
			if parentGeneration < ancestorGeneration {
				continue
			}
			childDepth := item.depth + 1
			if childDepth > g.maxDepth {
				return false, g.depthLimitError()
			}
			visited[p] = struct{}{}
			queue = append(queue, traversalQueueItem{hash: p, depth: childDepth})
		}
	}
	return false, nil
}

// ContainsSparse reports whether any commit on any path from start back to
// end carries the sparse flag. start counts, end does not, and nothing
// beyond end is visited. Commits from which end is unreachable are not on
// a path and are ignored.
func (g *Graph) ContainsSparse(start, end object.Hash) (bool, error) {
	if start == "" || end == "" || start == end {
		return false, nil
	}
	genEnd, err := g.generation(end)
	if err != nil {
		return false, err
	}

	type frame struct {
		id      object.Hash
		parents []object.Hash
		next    int
		onPath  bool
	}
	// onPath memoizes whether end is reachable from a commit.
	onPath := map[object.Hash]bool{end: true}
	var found bool

	enter := func(id object.Hash) (*frame, error) {
		gen, err := g.generation(id)
		if err != nil {
			return nil, err
		}
		f := &frame{id: id}
		if gen > genEnd {
			if f.parents, err = g.Parents(id); err != nil {
				return nil, err
			}
		}
		return f, nil
	}

	first, err := enter(start)
	if err != nil {
		return false, err
	}
	stack := []*frame{first}
	steps := 0
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next == len(top.parents) {
			stack = stack[:len(stack)-1]
			onPath[top.id] = top.onPath
			if top.onPath {
				sparse, err := g.IsSparse(top.id)
				if err != nil {
					return false, err
				}
				if sparse {
					found = true
					break
				}
				if len(stack) > 0 {
					stack[len(stack)-1].onPath = true
				}
			}
			continue
		}

		p := top.parents[top.next]
		top.next++
		if reached, ok := onPath[p]; ok {
			top.onPath = top.onPath || reached
			continue
		}
		steps++
		if steps > g.maxSteps {
			return false, g.stepsLimitError()
		}
		if len(stack) > g.maxDepth {
			return false, g.depthLimitError()
		}
		f, err := enter(p)
		if err != nil {
			return false, err
		}
		// Mark as visiting so cycles cannot recurse forever.
		onPath[p] = false
		stack = append(stack, f)
	}
	return found, nil
}

// MergeBase finds the best common ancestor of a and b: the one with the
// highest generation, ties broken by id. It uses generation numbers for
// pruning, fast ancestor checks for linear histories, and a memoized pair
// cache for repeated queries. found is false when the histories are
// disjoint.
func (g *Graph) MergeBase(a, b object.Hash) (base object.Hash, found bool, err error) {
	if a == "" || b == "" {
		return "", false, nil
	}
	if a == b {
		return a, true, nil
	}

	if cached, ok := g.state.loadMergeBase(a, b); ok {
		return cached.base, cached.found, nil
	}

	genA, err := g.generation(a)
	if err != nil {
		return "", false, err
	}
	genB, err := g.generation(b)
	if err != nil {
		return "", false, err
	}

	// Fast path: one side already contains the other. The side with the
	// lower generation is the only possible ancestor worth trying first.
	candidates := [2]object.Hash{a, b}
	if genA > genB {
		candidates = [2]object.Hash{b, a}
	}
	for _, anc := range candidates {
		desc := a
		if anc == a {
			desc = b
		}
		isAncestor, err := g.IsAncestor(desc, anc)
		if err != nil {
			return "", false, err
		}
		if isAncestor {
			g.state.storeMergeBase(a, b, anc, true)
			return anc, true, nil
		}
	}

	base, found, err = g.findMergeBaseWithPruning(a, b, genA, genB)
	if err != nil {
		return "", false, err
	}
	g.state.storeMergeBase(a, b, base, found)
	return base, found, nil
}

func (g *Graph) findMergeBaseWithPruning(a, b object.Hash, genA, genB uint64) (object.Hash, bool, error) {
	visitedA := map[object.Hash]struct{}{a: {}}
	visitedB := map[object.Hash]struct{}{b: {}}
	depthA := map[object.Hash]int{a: 0}
	depthB := map[object.Hash]int{b: 0}

	queueA := mergeBaseMaxHeap{{hash: a, generation: genA}}
	queueB := mergeBaseMaxHeap{{hash: b, generation: genB}}
	heap.Init(&queueA)
	heap.Init(&queueB)

	best := object.Hash("")
	var bestGeneration uint64
	steps := 0

	for queueA.Len() > 0 || queueB.Len() > 0 {
		if best != "" {
			topA, okA := queueA.Peek()
			topB, okB := queueB.Peek()
			if (!okA || topA.generation < bestGeneration) && (!okB || topB.generation < bestGeneration) {
				break
			}
		}

		var traverseA bool
		switch {
		case queueA.Len() == 0:
			traverseA = false
		case queueB.Len() == 0:
			traverseA = true
		default:
			topA := queueA[0]
			topB := queueB[0]
			if topA.generation != topB.generation {
				traverseA = topA.generation > topB.generation
			} else {
				traverseA = topA.hash <= topB.hash
			}
		}

		var item mergeBaseQueueItem
		if traverseA {
			item = heap.Pop(&queueA).(mergeBaseQueueItem)
		} else {
			item = heap.Pop(&queueB).(mergeBaseQueueItem)
		}

		steps++
		if steps > g.maxSteps {
			return "", false, g.stepsLimitError()
		}
		if best != "" && item.generation < bestGeneration {
			continue
		}

		var itemDepth int
		if traverseA {
			itemDepth = depthA[item.hash]
		} else {
			itemDepth = depthB[item.hash]
		}
		if itemDepth > g.maxDepth {
			return "", false, g.depthLimitError()
		}

		if traverseA {
			if _, seen := visitedB[item.hash]; seen {
				best, bestGeneration = chooseBetterMergeBase(best, bestGeneration, item.hash, item.generation)
			}
		} else {
			if _, seen := visitedA[item.hash]; seen {
				best, bestGeneration = chooseBetterMergeBase(best, bestGeneration, item.hash, item.generation)
			}
		}

		parents, err := g.Parents(item.hash)
		if err != nil {
			return "", false, err
		}
		for _, p := range parents {
			parentGeneration, err := g.generation(p)
			if err != nil {
				return "", false, err
			}
			if best != "" && parentGeneration < bestGeneration {
				continue
			}
			childDepth := itemDepth + 1
			if childDepth > g.maxDepth {
				return "", false, g.depthLimitError()
			}

			if traverseA {
				if _, seen := visitedA[p]; seen {
					continue
				}
				visitedA[p] = struct{}{}
				depthA[p] = childDepth
				heap.Push(&queueA, mergeBaseQueueItem{hash: p, generation: parentGeneration})
				if _, seen := visitedB[p]; seen {
					best, bestGeneration = chooseBetterMergeBase(best, bestGeneration, p, parentGeneration)
				}
			} else {
				if _, seen := visitedB[p]; seen {
					continue
				}
				visitedB[p] = struct{}{}
				depthB[p] = childDepth
				heap.Push(&queueB, mergeBaseQueueItem{hash: p, generation: parentGeneration})
				if _, seen := visitedA[p]; seen {
					best, bestGeneration = chooseBetterMergeBase(best, bestGeneration, p, parentGeneration)
				}
			}
		}
	}

	if best == "" {
		return "", false, nil
	}
	return best, true, nil
}

func chooseBetterMergeBase(best object.Hash, bestGeneration uint64, candidate object.Hash, candidateGeneration uint64) (object.Hash, uint64) {
	if best == "" {
		return candidate, candidateGeneration
	}
	if candidateGeneration > bestGeneration {
		return candidate, candidateGeneration
	}
	if candidateGeneration < bestGeneration {
		return best, bestGeneration
	}
	if candidate < best {
		return candidate, candidateGeneration
	}
	return best, bestGeneration
}
