package repo

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/tree"
)

// newTestRepo initializes an in-memory repository that is closed when
// the test ends.
func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Storage.Backend = BackendMemory
	cfg.Graph.Backend = BackendMemory
	r, err := Init(t.TempDir(), WithConfig(cfg))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

// road holds the x coordinate and the two integer attributes of a
// feature of the "roads" type.
type road [3]int64

func (v road) feature() *object.FeatureObj {
	return &object.FeatureObj{Values: []object.Value{
		object.Geometry(fmt.Sprintf("POINT (%d 0)", v[0])),
		object.Int(v[1]),
		object.Int(v[2]),
	}}
}

func writeRoadsType(t *testing.T, r *Repo) object.Hash {
	t.Helper()
	ft, err := r.Store.WriteFeatureType(&object.FeatureTypeObj{Name: "roads", Attributes: []object.AttributeDescriptor{
		{Name: "geom", Kind: object.KindGeometry},
		{Name: "a", Kind: object.KindInt},
		{Name: "b", Kind: object.KindInt},
	}})
	if err != nil {
		t.Fatalf("WriteFeatureType: %v", err)
	}
	return ft
}

// writeRoads writes a tree with a "roads" directory of type ft holding
// the given features by name.
func writeRoads(t *testing.T, r *Repo, ft object.Hash, roads map[string]road) object.Hash {
	t.Helper()
	e := tree.NewEditor(r.Store, "")
	if err := e.Put("", object.Node{Name: "roads", Type: object.TypeTree, ObjectID: object.EmptyTreeHash, MetadataID: ft}); err != nil {
		t.Fatalf("Put roads: %v", err)
	}
	for name, v := range roads {
		id, err := r.Store.WriteFeature(v.feature())
		if err != nil {
			t.Fatalf("WriteFeature: %v", err)
		}
		x := float64(v[0])
		n := object.Node{Name: name, Type: object.TypeFeature, ObjectID: id, Extent: &object.Envelope{MinX: x, MaxX: x}}
		if err := e.Put("roads", n); err != nil {
			t.Fatalf("Put %s: %v", name, err)
		}
	}
	id, err := e.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit tree: %v", err)
	}
	return id
}

func commitRoads(t *testing.T, r *Repo, ft object.Hash, roads map[string]road, parents ...object.Hash) object.Hash {
	t.Helper()
	id, err := r.CommitTree(writeRoads(t, r, ft, roads), parents, fmt.Sprintf("roads %d", len(roads)))
	if err != nil {
		t.Fatalf("CommitTree: %v", err)
	}
	return id
}

func assertDir(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected directory %q to exist: %v", path, err)
	}
	if !info.IsDir() {
		t.Fatalf("expected %q to be a directory", path)
	}
}

func assertFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected file %q to exist: %v", path, err)
	}
	if info.IsDir() {
		t.Fatalf("expected %q to be a file, got directory", path)
	}
}
