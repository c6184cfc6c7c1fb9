package diff

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/tree"
)

func feature(path, content string) (string, object.Node) {
	parent, name := tree.SplitPath(path)
	return parent, object.Node{Name: name, Type: object.TypeFeature, ObjectID: object.HashBytes([]byte(content))}
}

// buildTree writes a tree holding one feature per path, the feature id
// derived from the mapped content.
func buildTree(t *testing.T, store *object.Store, features map[string]string) object.Hash {
	t.Helper()
	e := tree.NewEditor(store, "")
	for path, content := range features {
		parent, n := feature(path, content)
		require.NoError(t, e.Put(parent, n))
	}
	id, err := e.Commit(context.Background())
	require.NoError(t, err)
	return id
}

func collect(t *testing.T, store *object.Store, old, new object.Hash, opts Options) []Entry {
	t.Helper()
	entries, err := New(store).Changes(context.Background(), old, new, opts)
	require.NoError(t, err)
	return entries
}

func paths(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path()
	}
	return out
}

func bigDir(dir string, n int) map[string]string {
	m := make(map[string]string, n)
	for i := 0; i < n; i++ {
		p := fmt.Sprintf("%s/f%05d", dir, i)
		m[p] = p
	}
	return m
}

func TestDiffIdentityIsEmpty(t *testing.T) {
	store := object.NewMemoryStore()
	for _, features := range []map[string]string{
		{},
		{"roads/a": "1", "roads/b": "2", "z": "3"},
		bigDir("big", 1200),
	} {
		id := buildTree(t, store, features)
		assert.Empty(t, collect(t, store, id, id, Options{ReportTrees: true}))
	}
}

func TestDiffOrderAndTypes(t *testing.T) {
	store := object.NewMemoryStore()
	old := buildTree(t, store, map[string]string{
		"roads/a":        "a1",
		"roads/b":        "b1",
		"roads-x/q":      "q1",
		"rivers/nile":    "n1",
		"lakes/erie":     "e1",
		"roads/sub/s1":   "s1",
		"roads/sub/gone": "g1",
	})
	new := buildTree(t, store, map[string]string{
		"roads/a":      "a2",
		"roads/c":      "c1",
		"roads-x/q":    "q1",
		"rivers/nile":  "n1",
		"roads/sub/s1": "s1",
		"zones/z1":     "z1",
	})

	entries := collect(t, store, old, new, Options{})
	assert.Equal(t, []string{
		"lakes/erie",
		"roads/a",
		"roads/b",
		"roads/c",
		"roads/sub/gone",
		"zones/z1",
	}, paths(entries))

	types := make([]ChangeType, len(entries))
	for i, e := range entries {
		types[i] = e.Type()
	}
	assert.Equal(t, []ChangeType{Removed, Modified, Removed, Added, Removed, Added}, types)
	assert.Equal(t, object.HashBytes([]byte("a1")), entries[1].OldID())
	assert.Equal(t, object.HashBytes([]byte("a2")), entries[1].NewID())

	withTrees := paths(collect(t, store, old, new, Options{ReportTrees: true}))
	assert.Equal(t, []string{
		"lakes",
		"lakes/erie",
		"roads",
		"roads/a",
		"roads/b",
		"roads/c",
		"roads/sub",
		"roads/sub/gone",
		"zones",
		"zones/z1",
	}, withTrees)
	assert.True(t, sort.SliceIsSorted(withTrees, func(i, j int) bool {
		return ComparePaths(withTrees[i], withTrees[j]) < 0
	}))
}

func TestDiffMetadataOnlyChange(t *testing.T) {
	store := object.NewMemoryStore()
	ftA := object.HashBytes([]byte("type-a"))
	ftB := object.HashBytes([]byte("type-b"))
	put := func(md object.Hash) object.Hash {
		e := tree.NewEditor(store, "")
		_, n := feature("r1", "same content")
		n.MetadataID = md
		require.NoError(t, e.Put("roads", n))
		id, err := e.Commit(context.Background())
		require.NoError(t, err)
		return id
	}

	entries := collect(t, store, put(ftA), put(ftB), Options{})
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, Modified, e.Type())
	assert.Equal(t, e.OldID(), e.NewID())
	assert.Equal(t, ftA, e.Old.MetadataID)
	assert.Equal(t, ftB, e.New.MetadataID)
}

func TestDiffTypeChangeReportsFeatureFirst(t *testing.T) {
	store := object.NewMemoryStore()
	old := buildTree(t, store, map[string]string{"x": "feature"})
	new := buildTree(t, store, map[string]string{"x/inner": "nested"})

	entries := collect(t, store, old, new, Options{ReportTrees: true})
	require.Len(t, entries, 3)
	assert.Equal(t, Removed, entries[0].Type())
	assert.False(t, entries[0].IsTree())
	assert.Equal(t, Added, entries[1].Type())
	assert.True(t, entries[1].IsTree())
	assert.Equal(t, "x/inner", entries[2].Path())

	// Back again: the feature is reported before the tree and its
	// contents.
	entries = collect(t, store, new, old, Options{ReportTrees: true})
	require.Len(t, entries, 3)
	assert.Equal(t, Added, entries[0].Type())
	assert.False(t, entries[0].IsTree())
	assert.Equal(t, Removed, entries[1].Type())
	assert.True(t, entries[1].IsTree())
	assert.Equal(t, "x/inner", entries[2].Path())
}

func TestDiffBucketedTrees(t *testing.T) {
	store := object.NewMemoryStore()
	features := bigDir("big", 1500)
	old := buildTree(t, store, features)

	features["big/f00042"] = "changed"
	delete(features, "big/f01000")
	features["big/new"] = "new"
	new := buildTree(t, store, features)

	entries := collect(t, store, old, new, Options{})
	assert.Equal(t, []string{"big/f00042", "big/f01000", "big/new"}, paths(entries))
	assert.Equal(t, []ChangeType{Modified, Removed, Added}, []ChangeType{entries[0].Type(), entries[1].Type(), entries[2].Type()})
}

func TestDiffBucketedAgainstDirect(t *testing.T) {
	store := object.NewMemoryStore()
	features := bigDir("big", 600)
	old := buildTree(t, store, features)
	for i := 400; i < 600; i++ {
		delete(features, fmt.Sprintf("big/f%05d", i))
	}
	new := buildTree(t, store, features)

	entries := collect(t, store, old, new, Options{})
	require.Len(t, entries, 200)
	for i, e := range entries {
		assert.Equal(t, Removed, e.Type())
		assert.Equal(t, fmt.Sprintf("big/f%05d", 400+i), e.Path())
	}
}

func TestDiffPathFilter(t *testing.T) {
	store := object.NewMemoryStore()
	old := buildTree(t, store, map[string]string{"a/x/1": "1", "a/y/1": "1", "b/1": "1"})
	new := buildTree(t, store, map[string]string{"a/x/1": "2", "a/y/1": "2", "b/1": "2"})

	assert.Equal(t, []string{"a/x/1"}, paths(collect(t, store, old, new, Options{Paths: []string{"a/x"}})))
	assert.Equal(t, []string{"a/y/1", "b/1"}, paths(collect(t, store, old, new, Options{Paths: []string{"b", "/a/y/"}})))
	assert.Equal(t, []string{"a/x", "a/x/1"}, paths(collect(t, store, old, new, Options{Paths: []string{"a/x"}, ReportTrees: true})))
	assert.Empty(t, collect(t, store, old, new, Options{Paths: []string{"c"}}))
}

func TestDiffInverseRebuildsOldTree(t *testing.T) {
	store := object.NewMemoryStore()
	oldFeatures := bigDir("big", 700)
	oldFeatures["small/a"] = "a"
	oldFeatures["small/b"] = "b"
	old := buildTree(t, store, oldFeatures)

	newFeatures := map[string]string{}
	for k, v := range oldFeatures {
		newFeatures[k] = v
	}
	for i := 0; i < 300; i++ {
		delete(newFeatures, fmt.Sprintf("big/f%05d", i))
	}
	newFeatures["big/f00500"] = "edited"
	newFeatures["small/c"] = "c"
	delete(newFeatures, "small/a")
	new := buildTree(t, store, newFeatures)
	require.NotEqual(t, old, new)

	e := tree.NewEditor(store, new)
	for _, entry := range collect(t, store, old, new, Options{}) {
		switch entry.Type() {
		case Added:
			require.NoError(t, e.Remove(entry.Path()))
		case Removed, Modified:
			require.NoError(t, e.PutRef(*entry.Old))
		}
	}
	got, err := e.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, old, got)
}

func TestIteratorEarlyCloseAndCancel(t *testing.T) {
	store := object.NewMemoryStore()
	new := buildTree(t, store, map[string]string{"a": "1", "b": "2", "c": "3"})

	it := New(store).Diff(context.Background(), "", new, Options{})
	require.True(t, it.Next())
	assert.Equal(t, "a", it.Entry().Path())
	it.Close()
	assert.False(t, it.Next())
	assert.NoError(t, it.Err())

	// Breaking out of a range loop closes the iterator.
	it = New(store).Diff(context.Background(), "", new, Options{})
	for e, err := range it.All() {
		require.NoError(t, err)
		assert.Equal(t, "a", e.Path())
		break
	}
	assert.False(t, it.Next())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	it = New(store).Diff(ctx, "", new, Options{})
	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), context.Canceled)
}

func TestDiffMissingTreeFails(t *testing.T) {
	store := object.NewMemoryStore()
	missing := object.HashBytes([]byte("not stored"))
	_, err := New(store).Changes(context.Background(), "", missing, Options{})
	assert.ErrorIs(t, err, object.ErrNotFound)
}

func TestComparePaths(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"a", "a", 0},
		{"a", "b", -1},
		{"a", "a/b", -1},
		{"a/b", "a-b", -1},
		{"roads/z", "roads-x", -1},
		{"b/a", "a/z", 1},
		{"a/b/c", "a/b", 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ComparePaths(c.a, c.b), "%s vs %s", c.a, c.b)
	}
}

func TestAttributesAndFormat(t *testing.T) {
	ft := &object.FeatureTypeObj{Name: "roads", Attributes: []object.AttributeDescriptor{
		{Name: "name", Kind: object.KindString},
		{Name: "lanes", Kind: object.KindInt},
	}}
	old := &object.FeatureObj{Values: []object.Value{object.String("Main St"), object.Int(2)}}
	new := &object.FeatureObj{Values: []object.Value{object.String("Main St"), object.Int(3), object.Bool(true)}}

	changes := Attributes(old, new, ft)
	require.Len(t, changes, 2)
	assert.Equal(t, "lanes", changes[0].Name)
	assert.Equal(t, "#2", changes[1].Name)
	assert.True(t, changes[1].Old.IsNull())

	out := FormatAttributes("roads/r1", changes)
	assert.True(t, strings.HasPrefix(out, "--- a/roads/r1\n+++ b/roads/r1\n"))
	assert.Contains(t, out, "-lanes: 2\n+lanes: 3\n")
	assert.Contains(t, out, "+#2: true\n")

	summary := FormatEntries([]Entry{{New: &tree.NodeRef{Node: object.Node{Name: "r1", Type: object.TypeFeature}, ParentPath: "roads"}}})
	assert.Equal(t, "+ roads/r1     (added)\n", summary)
}
