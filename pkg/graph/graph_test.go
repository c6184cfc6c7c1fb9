package graph

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/storage/badgerdb"
)

// history writes commits to a store and indexes them in a graph.
type history struct {
	t      *testing.T
	store  *object.Store
	graph  *Graph
	byName map[string]object.Hash
}

func newHistory(t *testing.T, g *Graph) *history {
	return &history{t: t, store: object.NewMemoryStore(), graph: g, byName: map[string]object.Hash{}}
}

func (h *history) commit(name string, parents ...string) object.Hash {
	h.t.Helper()
	c := &object.CommitObj{TreeHash: object.EmptyTreeHash, Author: "tester", Message: name}
	for _, p := range parents {
		c.Parents = append(c.Parents, h.byName[p])
	}
	id, err := h.store.Put(c)
	require.NoError(h.t, err)
	_, err = h.graph.PutParents(id, c.Parents)
	require.NoError(h.t, err)
	h.byName[name] = id
	return id
}

func (h *history) id(name string) object.Hash { return h.byName[name] }

// diamond builds
//
//	A <- B <- D
//	A <- C <- D
//	D <- E
//	X (unrelated root)
func diamond(t *testing.T, g *Graph) *history {
	h := newHistory(t, g)
	h.commit("A")
	h.commit("B", "A")
	h.commit("C", "A")
	h.commit("D", "B", "C")
	h.commit("E", "D")
	h.commit("X")
	return h
}

func TestPutParentsIsIdempotent(t *testing.T) {
	g := NewMemory()
	a, b := object.HashBytes([]byte("a")), object.HashBytes([]byte("b"))

	changed, err := g.PutParents(b, []object.Hash{a})
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = g.PutParents(b, []object.Hash{a})
	require.NoError(t, err)
	assert.False(t, changed)

	children, err := g.Children(a)
	require.NoError(t, err)
	assert.Equal(t, []object.Hash{b}, children)

	indexed, err := g.Exists(a)
	require.NoError(t, err)
	assert.False(t, indexed, "a parent seen only through its child is not indexed")
	indexed, err = g.Exists(b)
	require.NoError(t, err)
	assert.True(t, indexed)
}

func TestPutParentsMovesChildEdges(t *testing.T) {
	g := NewMemory()
	a, b, c := object.HashBytes([]byte("a")), object.HashBytes([]byte("b")), object.HashBytes([]byte("c"))
	_, err := g.PutParents(c, []object.Hash{a})
	require.NoError(t, err)
	_, err = g.PutParents(c, []object.Hash{b})
	require.NoError(t, err)

	children, err := g.Children(a)
	require.NoError(t, err)
	assert.Empty(t, children)
	children, err = g.Children(b)
	require.NoError(t, err)
	assert.Equal(t, []object.Hash{c}, children)
}

func TestParentByIndex(t *testing.T) {
	h := diamond(t, NewMemory())
	d := h.id("D")

	for n, want := range map[int]object.Hash{0: d, 1: h.id("B"), 2: h.id("C")} {
		got, ok, err := h.graph.Parent(d, n)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got, "parent %d", n)
	}
	_, ok, err := h.graph.Parent(d, 3)
	require.NoError(t, err)
	assert.False(t, ok)
	_, _, err = h.graph.Parent(d, -1)
	assert.Error(t, err)
}

func TestIsAncestorReflexiveAndTransitive(t *testing.T) {
	h := diamond(t, NewMemory())
	names := []string{"A", "B", "C", "D", "E", "X"}

	reach := map[[2]string]bool{}
	for _, s := range names {
		for _, e := range names {
			ok, err := h.graph.IsAncestor(h.id(s), h.id(e))
			require.NoError(t, err)
			reach[[2]string{s, e}] = ok
		}
	}

	for _, n := range names {
		assert.True(t, reach[[2]string{n, n}], "%s reaches itself", n)
	}
	for _, a := range names {
		for _, b := range names {
			for _, c := range names {
				if reach[[2]string{a, b}] && reach[[2]string{b, c}] {
					assert.True(t, reach[[2]string{a, c}], "%s->%s->%s", a, b, c)
				}
			}
		}
	}

	assert.True(t, reach[[2]string{"E", "A"}])
	assert.True(t, reach[[2]string{"D", "C"}])
	assert.False(t, reach[[2]string{"A", "E"}])
	assert.False(t, reach[[2]string{"B", "C"}])
	assert.False(t, reach[[2]string{"E", "X"}])
}

func TestContainsSparseChain(t *testing.T) {
	h := newHistory(t, NewMemory())
	h.commit("A")
	h.commit("B", "A")
	h.commit("C", "B")
	require.NoError(t, h.graph.SetSparse(h.id("B")))

	got, err := h.graph.ContainsSparse(h.id("C"), h.id("A"))
	require.NoError(t, err)
	assert.True(t, got)

	got, err = h.graph.ContainsSparse(h.id("C"), h.id("B"))
	require.NoError(t, err)
	assert.False(t, got, "the end commit itself does not count")
}

func TestContainsSparseFollowsEveryBranch(t *testing.T) {
	h := diamond(t, NewMemory())
	require.NoError(t, h.graph.SetSparse(h.id("C")))

	got, err := h.graph.ContainsSparse(h.id("E"), h.id("A"))
	require.NoError(t, err)
	assert.True(t, got, "sparse second-parent branch must be found")

	got, err = h.graph.ContainsSparse(h.id("E"), h.id("D"))
	require.NoError(t, err)
	assert.False(t, got, "nothing past the end is visited")
}

func TestContainsSparseIgnoresBranchesMissingEnd(t *testing.T) {
	h := newHistory(t, NewMemory())
	h.commit("A")
	h.commit("B", "A")
	h.commit("X")
	h.commit("M", "B", "X")
	require.NoError(t, h.graph.SetSparse(h.id("X")))

	got, err := h.graph.ContainsSparse(h.id("M"), h.id("A"))
	require.NoError(t, err)
	assert.False(t, got, "X is not on a path from M to A")

	require.NoError(t, h.graph.SetSparse(h.id("M")))
	got, err = h.graph.ContainsSparse(h.id("M"), h.id("A"))
	require.NoError(t, err)
	assert.True(t, got, "the start commit counts")
}

func TestMergeBase(t *testing.T) {
	h := diamond(t, NewMemory())
	cases := []struct {
		a, b, want string
	}{
		{"B", "C", "A"},
		{"E", "C", "C"},
		{"C", "E", "C"},
		{"D", "D", "D"},
	}
	for _, c := range cases {
		base, found, err := h.graph.MergeBase(h.id(c.a), h.id(c.b))
		require.NoError(t, err)
		require.True(t, found, "%s/%s", c.a, c.b)
		assert.Equal(t, h.id(c.want), base, "%s/%s", c.a, c.b)
	}

	_, found, err := h.graph.MergeBase(h.id("E"), h.id("X"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMergeBasePrefersHighestGeneration(t *testing.T) {
	h := newHistory(t, NewMemory())
	h.commit("A")
	h.commit("B", "A")
	h.commit("C", "B")
	h.commit("L", "C")
	h.commit("R", "C")
	h.commit("L2", "L", "B")
	h.commit("R2", "R", "A")

	base, found, err := h.graph.MergeBase(h.id("L2"), h.id("R2"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, h.id("C"), base)
}

func TestTraversalLimit(t *testing.T) {
	g := New(NewMemoryBackend(), Options{MaxSteps: 3})
	h := newHistory(t, g)
	prev := ""
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("c%d", i)
		if prev == "" {
			h.commit(name)
		} else {
			h.commit(name, prev)
		}
		prev = name
	}
	_, err := g.IsAncestor(h.id("c9"), h.id("c0"))
	assert.ErrorIs(t, err, ErrTraversalLimit)
}

func TestPropertiesSurviveReindexing(t *testing.T) {
	g := NewMemory()
	id := object.HashBytes([]byte("c"))
	require.NoError(t, g.SetProperty(id, "origin", "mirror"))
	_, err := g.PutParents(id, nil)
	require.NoError(t, err)

	v, ok, err := g.Property(id, "origin")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "mirror", v)
	sparse, err := g.IsSparse(id)
	require.NoError(t, err)
	assert.False(t, sparse)
}

func ancestryMatrix(t *testing.T, h *history) map[[2]string]bool {
	t.Helper()
	out := map[[2]string]bool{}
	for s := range h.byName {
		for e := range h.byName {
			ok, err := h.graph.IsAncestor(h.id(s), h.id(e))
			require.NoError(t, err)
			out[[2]string{s, e}] = ok
		}
	}
	return out
}

func testRebuildConvergence(t *testing.T, g *Graph) {
	h := diamond(t, g)
	before := ancestryMatrix(t, h)

	fixed, err := g.Rebuild(context.Background(), h.store)
	require.NoError(t, err)
	assert.Empty(t, fixed, "a consistent graph needs no repair")

	require.NoError(t, g.Truncate())
	fixed, err = g.Rebuild(context.Background(), h.store)
	require.NoError(t, err)
	assert.Len(t, fixed, len(h.byName))
	assert.Equal(t, before, ancestryMatrix(t, h))

	children, err := g.Children(h.id("A"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []object.Hash{h.id("B"), h.id("C")}, children)
}

func TestRebuildConvergesMemory(t *testing.T) {
	testRebuildConvergence(t, NewMemory())
}

func TestRebuildConvergesBadger(t *testing.T) {
	db, err := badgerdb.Open(badgerdb.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	testRebuildConvergence(t, New(NewBadgerBackend(db), Options{}))
}

func TestRebuildRepairsOnlyInconsistentRecords(t *testing.T) {
	h := diamond(t, NewMemory())
	// Corrupt D's parents and forget B entirely.
	_, err := h.graph.PutParents(h.id("D"), []object.Hash{h.id("C")})
	require.NoError(t, err)
	rec, _, err := h.graph.Record(h.id("B"))
	require.NoError(t, err)
	rec.Indexed = false
	rec.Parents = nil
	require.NoError(t, h.graph.backend.Put(rec))

	fixed, err := h.graph.Rebuild(context.Background(), h.store)
	require.NoError(t, err)
	assert.ElementsMatch(t, []object.Hash{h.id("D"), h.id("B")}, fixed)

	ok, err := h.graph.IsAncestor(h.id("E"), h.id("B"))
	require.NoError(t, err)
	assert.True(t, ok)
}
