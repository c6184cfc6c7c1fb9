package repo

import (
	"testing"

	"github.com/odvcencio/geogot/pkg/object"
)

func TestCommitTree_UsesConfiguredAuthor(t *testing.T) {
	r := newTestRepo(t)
	r.Config.Core.Author = "Mapper <mapper@example.com>"

	id, err := r.CommitTree(object.EmptyTreeHash, nil, "empty")
	if err != nil {
		t.Fatalf("CommitTree: %v", err)
	}
	c, err := r.Store.ReadCommit(id)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if c.Author != "Mapper <mapper@example.com>" || c.Committer != c.Author {
		t.Errorf("author/committer = %q/%q", c.Author, c.Committer)
	}
	if c.AuthorTimestamp == 0 || c.Message != "empty" {
		t.Errorf("commit = %+v", c)
	}
}

func TestWriteCommit_RequiresStoredTree(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.WriteCommit(&object.CommitObj{TreeHash: object.HashBytes([]byte("nope")), Author: "a", Committer: "a"})
	if !object.IsNotFound(err) {
		t.Fatalf("WriteCommit error = %v, want not found", err)
	}
}

func TestWriteCommit_IndexesAndFlagsSparse(t *testing.T) {
	r := newTestRepo(t)
	ft := writeRoadsType(t, r)
	missing := object.HashBytes([]byte("shallow"))

	c0 := commitRoads(t, r, ft, map[string]road{"r1": {0, 1, 1}}, missing)
	c1 := commitRoads(t, r, ft, map[string]road{"r1": {0, 2, 1}}, c0)

	parents, err := r.Graph.Parents(c1)
	if err != nil || len(parents) != 1 || parents[0] != c0 {
		t.Fatalf("Parents(c1) = %v, %v; want [%s]", parents, err, c0)
	}
	if sparse, _ := r.Graph.IsSparse(c0); !sparse {
		t.Error("commit with a missing parent is not sparse")
	}
	if sparse, _ := r.Graph.IsSparse(c1); sparse {
		t.Error("commit with stored parents is sparse")
	}
}

func TestLog_FirstParentWalk(t *testing.T) {
	r := newTestRepo(t)
	ft := writeRoadsType(t, r)
	missing := object.HashBytes([]byte("shallow"))

	c0 := commitRoads(t, r, ft, map[string]road{"r1": {0, 1, 1}}, missing)
	c1 := commitRoads(t, r, ft, map[string]road{"r1": {0, 2, 1}}, c0)
	side := commitRoads(t, r, ft, map[string]road{"r1": {0, 1, 3}}, c0)
	c2, err := r.CommitTree(object.EmptyTreeHash, []object.Hash{c1, side}, "merge")
	if err != nil {
		t.Fatalf("CommitTree: %v", err)
	}

	entries, err := r.Log(c2, 0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	want := []object.Hash{c2, c1, c0}
	if len(entries) != len(want) {
		t.Fatalf("Log returned %d entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.ID != want[i] {
			t.Errorf("entry %d = %s, want %s", i, e.ID.Short(), want[i].Short())
		}
	}
	if !entries[2].Sparse || entries[0].Sparse {
		t.Errorf("sparse flags = %v/%v/%v", entries[0].Sparse, entries[1].Sparse, entries[2].Sparse)
	}

	limited, err := r.Log(c2, 2)
	if err != nil {
		t.Fatalf("Log(limit 2): %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("Log(limit 2) returned %d entries", len(limited))
	}
}
