package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/odvcencio/geogot/pkg/merge"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/tree"
)

// branches commits base, then ours and theirs on top of it.
func branches(t *testing.T, r *Repo, base, ours, theirs map[string]road) (b, o, th object.Hash) {
	t.Helper()
	ft := writeRoadsType(t, r)
	b = commitRoads(t, r, ft, base)
	o = commitRoads(t, r, ft, ours, b)
	th = commitRoads(t, r, ft, theirs, b)
	return b, o, th
}

func readRoad(t *testing.T, r *Repo, root object.Hash, name string) *object.FeatureObj {
	t.Helper()
	ref, err := tree.Lookup(r.Store, root, "roads/"+name)
	if err != nil {
		t.Fatalf("Lookup %s: %v", name, err)
	}
	f, err := r.Store.ReadFeature(ref.ObjectID())
	if err != nil {
		t.Fatalf("ReadFeature %s: %v", name, err)
	}
	return f
}

func TestMergeCommit_Clean(t *testing.T) {
	r := newTestRepo(t)
	_, ours, theirs := branches(t, r,
		map[string]road{"r1": {0, 1, 1}, "r2": {5, 1, 1}},
		map[string]road{"r1": {0, 2, 1}, "r2": {5, 1, 1}},
		map[string]road{"r1": {0, 1, 2}, "r3": {9, 1, 1}},
	)

	res, err := r.MergeCommit(context.Background(), ours, theirs, "")
	if err != nil {
		t.Fatalf("MergeCommit: %v", err)
	}
	if res.Counts.Merged != 1 || res.Counts.Conflicted != 0 {
		t.Fatalf("counts = %+v, want one merged feature and no conflicts", res.Counts)
	}

	r1 := readRoad(t, r, res.Tree, "r1")
	if !r1.Values[1].Equal(object.Int(2)) || !r1.Values[2].Equal(object.Int(2)) {
		t.Errorf("r1 = %v, want both attribute edits", r1.Values)
	}
	readRoad(t, r, res.Tree, "r3")
	if _, err := tree.Lookup(r.Store, res.Tree, "roads/r2"); !errors.Is(err, tree.ErrPathNotFound) {
		t.Errorf("r2 lookup error = %v, want ErrPathNotFound", err)
	}

	c, err := r.Store.ReadCommit(res.Commit)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if c.TreeHash != res.Tree || len(c.Parents) != 2 || c.Parents[0] != ours || c.Parents[1] != theirs {
		t.Fatalf("merge commit = %+v", c)
	}
	if c.Message == "" {
		t.Error("merge commit has no message")
	}
	parents, err := r.Graph.Parents(res.Commit)
	if err != nil || len(parents) != 2 {
		t.Fatalf("graph parents = %v, %v", parents, err)
	}
}

func TestMergeCommit_KeepsOneSidedTypeOverride(t *testing.T) {
	r := newTestRepo(t)
	ft := writeRoadsType(t, r)
	ftB, err := r.Store.WriteFeatureType(&object.FeatureTypeObj{Name: "roads-b", Attributes: []object.AttributeDescriptor{
		{Name: "geom", Kind: object.KindGeometry},
		{Name: "a", Kind: object.KindInt},
		{Name: "b", Kind: object.KindInt},
	}})
	if err != nil {
		t.Fatalf("WriteFeatureType: %v", err)
	}

	baseTree := writeRoads(t, r, ft, map[string]road{"r1": {0, 1, 1}})
	base, err := r.CommitTree(baseTree, nil, "base")
	if err != nil {
		t.Fatalf("CommitTree base: %v", err)
	}
	ref, err := tree.Lookup(r.Store, baseTree, "roads/r1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	ref.Node.MetadataID = ftB
	e := tree.NewEditor(r.Store, baseTree)
	if err := e.PutRef(ref); err != nil {
		t.Fatalf("PutRef: %v", err)
	}
	retyped, err := e.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit tree: %v", err)
	}
	ours, err := r.CommitTree(retyped, []object.Hash{base}, "retype r1")
	if err != nil {
		t.Fatalf("CommitTree ours: %v", err)
	}
	theirs := commitRoads(t, r, ft, map[string]road{"r1": {0, 2, 1}}, base)

	res, err := r.MergeCommit(context.Background(), ours, theirs, "")
	if err != nil {
		t.Fatalf("MergeCommit: %v", err)
	}
	if res.Counts.Conflicted != 0 {
		t.Fatalf("conflicts = %+v, want none", res.Conflicts)
	}
	got, err := tree.Lookup(r.Store, res.Tree, "roads/r1")
	if err != nil {
		t.Fatalf("Lookup merged: %v", err)
	}
	if got.Node.MetadataID != ftB {
		t.Errorf("r1 type = %s, want override %s", got.Node.MetadataID, ftB)
	}
	if v := readRoad(t, r, res.Tree, "r1").Values[1]; !v.Equal(object.Int(2)) {
		t.Errorf("r1 a = %v, want 2", v)
	}
}

func TestMergeCommit_ConflictsWriteNothing(t *testing.T) {
	r := newTestRepo(t)
	_, ours, theirs := branches(t, r,
		map[string]road{"r1": {0, 1, 1}, "r2": {5, 1, 1}},
		map[string]road{"r1": {0, 2, 1}, "r2": {5, 1, 2}},
		map[string]road{"r1": {0, 3, 1}, "r2": {5, 2, 1}},
	)

	res, err := r.MergeCommit(context.Background(), ours, theirs, "merge")
	if !errors.Is(err, ErrMergeConflicts) {
		t.Fatalf("MergeCommit error = %v, want ErrMergeConflicts", err)
	}
	if res == nil || len(res.Conflicts) != 1 {
		t.Fatalf("result = %+v, want one conflict", res)
	}
	if c := res.Conflicts[0]; c.Path != "roads/r1" || c.Kind != merge.ConflictModifyModify {
		t.Errorf("conflict = %+v", c)
	}
	if res.Commit != "" || res.Tree != "" {
		t.Errorf("conflicted merge produced commit %q tree %q", res.Commit, res.Tree)
	}

	// The reconciled r2 must not have been written.
	merged := road{5, 2, 2}.feature()
	id, err := object.HashOf(merged)
	if err != nil {
		t.Fatalf("HashOf: %v", err)
	}
	if ok, _ := r.Store.Has(id); ok {
		t.Error("merged feature written despite conflicts")
	}
}

func TestMergeCommit_FastForwardAndUpToDate(t *testing.T) {
	r := newTestRepo(t)
	ft := writeRoadsType(t, r)
	base := commitRoads(t, r, ft, map[string]road{"r1": {0, 1, 1}})
	next := commitRoads(t, r, ft, map[string]road{"r1": {0, 2, 1}}, base)

	res, err := r.MergeCommit(context.Background(), base, next, "")
	if err != nil {
		t.Fatalf("MergeCommit: %v", err)
	}
	if !res.FastForward || res.Commit != next {
		t.Fatalf("fast-forward result = %+v", res)
	}

	res, err = r.MergeCommit(context.Background(), next, base, "")
	if err != nil {
		t.Fatalf("MergeCommit: %v", err)
	}
	if !res.UpToDate || res.Commit != next {
		t.Fatalf("up-to-date result = %+v", res)
	}
}

func TestMergeCommit_UnrelatedHistories(t *testing.T) {
	r := newTestRepo(t)
	ft := writeRoadsType(t, r)
	a := commitRoads(t, r, ft, map[string]road{"r1": {0, 1, 1}})
	b := commitRoads(t, r, ft, map[string]road{"r2": {1, 1, 1}})

	if _, err := r.MergeCommit(context.Background(), a, b, ""); !errors.Is(err, merge.ErrNoCommonAncestor) {
		t.Fatalf("MergeCommit error = %v, want ErrNoCommonAncestor", err)
	}
}

func TestMergePreview_CountsWithoutWriting(t *testing.T) {
	r := newTestRepo(t)
	_, ours, theirs := branches(t, r,
		map[string]road{"r1": {0, 1, 1}, "r2": {5, 1, 1}},
		map[string]road{"r1": {0, 2, 1}, "r2": {5, 2, 1}},
		map[string]road{"r1": {0, 3, 1}, "r2": {5, 1, 2}},
	)

	report, err := r.MergePreview(context.Background(), ours, theirs)
	if err != nil {
		t.Fatalf("MergePreview: %v", err)
	}
	if !report.Done || !report.HasConflicts() {
		t.Fatalf("report = %+v, want a finished report with conflicts", report)
	}
	if report.Counts.Conflicted != 1 || report.Counts.Merged != 1 {
		t.Errorf("counts = %+v", report.Counts)
	}

	only, err := r.MergePreview(context.Background(), ours, theirs, "roads/r2")
	if err != nil {
		t.Fatalf("MergePreview(path): %v", err)
	}
	if only.HasConflicts() || only.Counts.Merged != 1 {
		t.Errorf("filtered counts = %+v", only.Counts)
	}
}
