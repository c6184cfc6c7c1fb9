package blame

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/geogot/pkg/graph"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/tree"
)

type history struct {
	t     *testing.T
	store *object.Store
	graph *graph.Graph
	ft    object.Hash
	head  object.Hash
	root  object.Hash
	clock int64
}

func newHistory(t *testing.T) *history {
	store := object.NewMemoryStore()
	ft, err := store.WriteFeatureType(&object.FeatureTypeObj{Name: "roads", Attributes: []object.AttributeDescriptor{
		{Name: "name", Kind: object.KindString},
		{Name: "lanes", Kind: object.KindInt},
		{Name: "surface", Kind: object.KindString},
	}})
	require.NoError(t, err)
	h := &history{t: t, store: store, graph: graph.NewMemory(), ft: ft, root: object.EmptyTreeHash, clock: 1_700_000_000}
	h.edit(func(e *tree.Editor) {
		require.NoError(t, e.Put("", object.Node{Name: "roads", Type: object.TypeTree, ObjectID: object.EmptyTreeHash, MetadataID: ft}))
	})
	return h
}

func (h *history) edit(fn func(e *tree.Editor)) {
	h.t.Helper()
	e := tree.NewEditor(h.store, h.root)
	fn(e)
	root, err := e.Commit(context.Background())
	require.NoError(h.t, err)
	h.root = root
}

func (h *history) put(path string, values ...object.Value) {
	h.t.Helper()
	id, err := h.store.WriteFeature(&object.FeatureObj{Values: values})
	require.NoError(h.t, err)
	parent, name := tree.SplitPath(path)
	h.edit(func(e *tree.Editor) {
		require.NoError(h.t, e.Put(parent, object.Node{Name: name, Type: object.TypeFeature, ObjectID: id}))
	})
}

// commit records the current tree on top of head.
func (h *history) commit(author string) object.Hash {
	h.t.Helper()
	h.clock += 60
	c := &object.CommitObj{TreeHash: h.root, Author: author, AuthorTimestamp: h.clock, Committer: author, CommitterTimestamp: h.clock, Message: fmt.Sprintf("at %d", h.clock)}
	if h.head != "" {
		c.Parents = []object.Hash{h.head}
	}
	id, err := h.store.WriteCommit(c)
	require.NoError(h.t, err)
	_, err = h.graph.PutParents(id, c.Parents)
	require.NoError(h.t, err)
	h.head = id
	return id
}

func road(name string, lanes int64, surface string) []object.Value {
	return []object.Value{object.String(name), object.Int(lanes), object.String(surface)}
}

func TestBlameAttributesEachValue(t *testing.T) {
	h := newHistory(t)
	h.put("roads/r1", road("Main", 1, "gravel")...)
	c1 := h.commit("alice")
	h.put("roads/r1", road("Main St", 1, "gravel")...)
	c2 := h.commit("bob")
	h.put("roads/r2", road("Side", 1, "dirt")...)
	h.commit("carol")
	h.put("roads/r1", road("Main St", 2, "gravel")...)
	c4 := h.commit("dave")

	for _, g := range []*graph.Graph{h.graph, nil} {
		report, err := New(h.store, g).Blame(context.Background(), c4, "roads/r1")
		require.NoError(t, err)
		assert.False(t, report.Incomplete)
		assert.Equal(t, "roads/r1", report.Path)
		require.Len(t, report.Attributes, 3)

		name, ok := report.Attribute("name")
		require.True(t, ok)
		assert.Equal(t, c2, name.Commit)
		assert.Equal(t, "bob", name.Author)
		assert.True(t, name.Value.Equal(object.String("Main St")))

		lanes, _ := report.Attribute("lanes")
		assert.Equal(t, c4, lanes.Commit)
		assert.Equal(t, "dave", lanes.Author)

		surface, _ := report.Attribute("surface")
		assert.Equal(t, c1, surface.Commit)
		assert.Equal(t, "alice", surface.Author)
		assert.Greater(t, lanes.Timestamp, surface.Timestamp)
	}
}

func TestBlameRevertedValueKeepsLatestChange(t *testing.T) {
	h := newHistory(t)
	h.put("roads/r1", road("Main", 1, "gravel")...)
	h.commit("alice")
	h.put("roads/r1", road("Main", 2, "gravel")...)
	h.commit("bob")
	h.put("roads/r1", road("Main", 1, "gravel")...)
	c3 := h.commit("carol")

	report, err := New(h.store, h.graph).Blame(context.Background(), c3, "roads/r1")
	require.NoError(t, err)
	lanes, _ := report.Attribute("lanes")
	assert.Equal(t, c3, lanes.Commit)
}

func TestBlameFeatureReplacingTree(t *testing.T) {
	h := newHistory(t)
	h.put("roads/r1/inner", road("Inner", 1, "paved")...)
	h.commit("alice")
	h.edit(func(e *tree.Editor) { require.NoError(t, e.Remove("roads/r1")) })
	h.put("roads/r1", road("Inner", 1, "paved")...)
	c2 := h.commit("bob")

	report, err := New(h.store, h.graph).Blame(context.Background(), c2, "roads/r1")
	require.NoError(t, err)
	for _, a := range report.Attributes {
		assert.Equal(t, c2, a.Commit, a.Name)
	}
}

func TestBlameStopsAtSparseAndMissingHistory(t *testing.T) {
	h := newHistory(t)
	h.put("roads/r1", road("Main", 1, "gravel")...)
	h.commit("alice")
	h.put("roads/r1", road("Main", 2, "gravel")...)
	c2 := h.commit("bob")
	require.NoError(t, h.graph.SetSparse(c2))
	h.put("roads/r1", road("Main", 3, "gravel")...)
	c3 := h.commit("carol")

	report, err := New(h.store, h.graph).Blame(context.Background(), c3, "roads/r1")
	require.NoError(t, err)
	assert.True(t, report.Incomplete)

	// A commit whose parent was never fetched.
	orphan := &object.CommitObj{TreeHash: h.root, Parents: []object.Hash{object.HashBytes([]byte("elsewhere"))}, Author: "erin", Message: "shallow"}
	id, err := h.store.WriteCommit(orphan)
	require.NoError(t, err)
	report, err = New(h.store, nil).Blame(context.Background(), id, "roads/r1")
	require.NoError(t, err)
	assert.True(t, report.Incomplete)
	name, _ := report.Attribute("name")
	assert.Equal(t, id, name.Commit)
	assert.Equal(t, "erin", name.Author)
}

func TestBlameErrors(t *testing.T) {
	h := newHistory(t)
	h.put("roads/r1", road("Main", 1, "gravel")...)
	c1 := h.commit("alice")
	b := New(h.store, h.graph)

	_, err := b.Blame(context.Background(), c1, "roads/missing")
	assert.ErrorIs(t, err, tree.ErrPathNotFound)
	_, err = b.Blame(context.Background(), c1, "roads")
	assert.ErrorIs(t, err, ErrPathNotFeature)
	_, err = b.Blame(context.Background(), object.HashBytes([]byte("nope")), "roads/r1")
	assert.ErrorIs(t, err, object.ErrNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Blame(ctx, c1, "roads/r1")
	assert.ErrorIs(t, err, context.Canceled)
}
