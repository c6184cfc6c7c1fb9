package tree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/geogot/pkg/object"
)

func sampleRoot(t *testing.T, store *object.Store) object.Hash {
	t.Helper()
	e := NewEditor(store, "")
	for _, p := range []struct{ dir, name string }{
		{"roads", "b"},
		{"roads", "a"},
		{"rivers", "nile"},
		{"", "z"},
	} {
		require.NoError(t, e.Put(p.dir, featureNode(p.name)))
	}
	root, err := e.Commit(context.Background())
	require.NoError(t, err)
	return root
}

func TestWalkIsPreOrderByName(t *testing.T) {
	store := object.NewMemoryStore()
	root := sampleRoot(t, store)

	var paths []string
	err := Walk(context.Background(), store, root, "", func(ref NodeRef) error {
		paths = append(paths, ref.Path())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"rivers", "rivers/nile", "roads", "roads/a", "roads/b", "z"}, paths)
}

func TestWalkSkipTreeAndPrefix(t *testing.T) {
	store := object.NewMemoryStore()
	root := sampleRoot(t, store)

	var paths []string
	err := Walk(context.Background(), store, root, "", func(ref NodeRef) error {
		paths = append(paths, ref.Path())
		if ref.Path() == "rivers" {
			return SkipTree
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"rivers", "roads", "roads/a", "roads/b", "z"}, paths)

	paths = nil
	err = Walk(context.Background(), store, root, "roads", func(ref NodeRef) error {
		paths = append(paths, ref.Path())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"roads", "roads/a", "roads/b"}, paths)
}

func TestLookupThroughBuckets(t *testing.T) {
	store := object.NewMemoryStore()
	nodes := featureNodes(900)
	inner, tr := build(t, store, "", nodes)
	require.NotEmpty(t, tr.Buckets)

	root, _ := build(t, store, "", []object.Node{{Name: "big", Type: object.TypeTree, ObjectID: inner}})
	ref, err := Lookup(store, root, "big/f00777")
	require.NoError(t, err)
	assert.Equal(t, nodes[777].ObjectID, ref.ObjectID())

	_, err = Lookup(store, root, "big/missing")
	assert.ErrorIs(t, err, ErrPathNotFound)
	_, err = Lookup(store, root, "big/f00777/deeper")
	assert.ErrorIs(t, err, ErrPathNotFound)

	entries, err := Entries(store, inner)
	require.NoError(t, err)
	require.Len(t, entries, 900)
	for i := 1; i < len(entries); i++ {
		require.Less(t, entries[i-1].Name, entries[i].Name)
	}
}
