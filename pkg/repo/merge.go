package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/odvcencio/geogot/pkg/diff"
	"github.com/odvcencio/geogot/pkg/merge"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/tree"
)

// ErrMergeConflicts is returned by MergeCommit when the merge cannot be
// committed until its conflicts are resolved.
var ErrMergeConflicts = errors.New("merge has conflicts")

// MergeResult is the outcome of a repository-level merge.
type MergeResult struct {
	Ancestor    object.Hash
	Counts      merge.Counts
	Conflicts   []merge.Conflict
	Tree        object.Hash // merged tree, set on success
	Commit      object.Hash // resulting commit, set on success
	FastForward bool        // theirs descends from ours and was taken as is
	UpToDate    bool        // ours already contains theirs
}

func (r *Repo) engine() *merge.Engine {
	return merge.NewEngine(r.Store, r.Graph,
		merge.WithMetrics(r.mergeMetrics),
		merge.WithLogger(r.logger.With("component", "merge")),
	)
}

// MergePreview runs the merge scenario of theirs into ours, optionally
// restricted to paths, and counts its results without changing anything.
func (r *Repo) MergePreview(ctx context.Context, ours, theirs object.Hash, paths ...string) (*merge.Report, error) {
	var report merge.Report
	if err := r.engine().Scenario(ctx, merge.Request{Ours: ours, Theirs: theirs, Paths: paths}, &report); err != nil {
		return nil, fmt.Errorf("merge preview: %w", err)
	}
	return &report, nil
}

// MergeCommit merges theirs into ours. Clean and attribute-merged results
// are applied onto ours' tree and committed with parents ours and theirs.
// Any conflict halts the merge: nothing is written and ErrMergeConflicts
// is returned together with the result listing the conflicts.
func (r *Repo) MergeCommit(ctx context.Context, ours, theirs object.Hash, message string) (*MergeResult, error) {
	base, ok, err := r.Graph.MergeBase(ours, theirs)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("merge %s..%s: %w", ours.Short(), theirs.Short(), merge.ErrNoCommonAncestor)
	}

	oursCommit, err := r.Store.ReadCommit(ours)
	if err != nil {
		return nil, fmt.Errorf("merge: read ours: %w", err)
	}
	res := &MergeResult{Ancestor: base}
	switch base {
	case theirs:
		res.UpToDate, res.Commit, res.Tree = true, ours, oursCommit.TreeHash
		return res, nil
	case ours:
		theirsCommit, err := r.Store.ReadCommit(theirs)
		if err != nil {
			return nil, fmt.Errorf("merge: read theirs: %w", err)
		}
		res.FastForward, res.Commit, res.Tree = true, theirs, theirsCommit.TreeHash
		return res, nil
	}

	a := &applier{store: r.Store, editor: tree.NewEditor(r.Store, oursCommit.TreeHash)}
	req := merge.Request{Ancestor: base, Ours: ours, Theirs: theirs}
	if err := r.engine().Scenario(ctx, req, a); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if a.err != nil {
		return nil, fmt.Errorf("merge: apply: %w", a.err)
	}
	res.Counts, res.Conflicts = a.counts, a.conflicts
	if len(a.conflicts) > 0 {
		return res, fmt.Errorf("merge %s..%s: %w (%d)", ours.Short(), theirs.Short(), ErrMergeConflicts, len(a.conflicts))
	}

	for _, f := range a.merged {
		if _, err := r.Store.WriteFeature(f); err != nil {
			return nil, fmt.Errorf("merge: write merged feature: %w", err)
		}
	}
	res.Tree, err = a.editor.Commit(ctx)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if message == "" {
		message = fmt.Sprintf("Merge %s into %s", theirs.Short(), ours.Short())
	}
	res.Commit, err = r.CommitTree(res.Tree, []object.Hash{ours, theirs}, message)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	r.logger.Info("merged",
		"ours", ours.Short(),
		"theirs", theirs.Short(),
		"commit", res.Commit.Short(),
		"merged_features", res.Counts.Merged,
	)
	return res, nil
}

// applier is a merge.Consumer that replays results onto ours' tree as
// they stream in. Results that ours already holds apply as no-ops.
type applier struct {
	store     *object.Store
	editor    *tree.Editor
	merged    []*object.FeatureObj
	conflicts []merge.Conflict
	counts    merge.Counts
	err       error
}

func (a *applier) Conflicted(c merge.Conflict) {
	a.counts.Conflicted++
	a.conflicts = append(a.conflicts, c)
}

func (a *applier) Unconflicted(e diff.Entry) {
	a.counts.Unconflicted++
	if a.err == nil {
		a.err = a.apply(e)
	}
}

func (a *applier) Merged(f merge.FeatureInfo) {
	a.counts.Merged++
	a.merged = append(a.merged, f.Feature)
	if a.err == nil {
		a.err = a.editor.PutRef(f.Ref)
	}
}

func (a *applier) Finished() {}

func (a *applier) apply(e diff.Entry) error {
	path := e.Path()
	switch {
	case e.New == nil:
		// Only remove what the removal was about; a type change may
		// already have put the other kind of entry there.
		n, ok, err := a.editor.Get(path)
		if err != nil || !ok || n.IsTree() != e.Old.IsTree() {
			return err
		}
		return a.editor.Remove(path)
	case e.New.IsTree():
		return a.editor.SetMetadata(path, e.New.Node.MetadataID)
	default:
		return a.editor.PutRef(*e.New)
	}
}
