// Package blame attributes each attribute value of a feature to the commit
// that last changed it.
package blame

import (
	"context"
	"errors"
	"fmt"

	"github.com/odvcencio/geogot/pkg/diff"
	"github.com/odvcencio/geogot/pkg/graph"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/tree"
)

// ErrPathNotFeature is returned when the blamed path holds a tree.
var ErrPathNotFeature = errors.New("path is not a feature")

// ValueAndCommit is an attribute value and the commit that introduced it.
type ValueAndCommit struct {
	Value     object.Value
	Commit    object.Hash
	Author    string
	Timestamp int64
}

// Attribution is the blame of one attribute.
type Attribution struct {
	Name string
	ValueAndCommit
}

// Report is the blame of one feature, attributes in feature type order.
type Report struct {
	Path       string
	Feature    object.Hash
	Attributes []Attribution
	// Incomplete is set when the walk reached history that is not stored
	// locally, so some attributions may name a later commit than the one
	// that actually introduced the value.
	Incomplete bool
}

// Attribute returns the blame of the named attribute.
func (r *Report) Attribute(name string) (ValueAndCommit, bool) {
	for _, a := range r.Attributes {
		if a.Name == name {
			return a.ValueAndCommit, true
		}
	}
	return ValueAndCommit{}, false
}

// Blamer walks first-parent history.
type Blamer struct {
	store  *object.Store
	graph  *graph.Graph
	differ *diff.Differ
}

// New returns a Blamer. g may be nil; parents are then read from the
// commits themselves.
func New(store *object.Store, g *graph.Graph) *Blamer {
	return &Blamer{store: store, graph: g, differ: diff.New(store)}
}

// Blame reports, for every attribute of the feature at path in commit, the
// commit on the first-parent chain that last changed its value.
func (b *Blamer) Blame(ctx context.Context, commit object.Hash, path string) (*Report, error) {
	c, err := b.store.ReadCommit(commit)
	if err != nil {
		return nil, fmt.Errorf("blame: read commit %s: %w", commit.Short(), err)
	}
	ref, err := tree.Lookup(b.store, c.TreeHash, path)
	if err != nil {
		return nil, fmt.Errorf("blame %q: %w", path, err)
	}
	if ref.IsTree() {
		return nil, fmt.Errorf("blame %q: %w", path, ErrPathNotFeature)
	}
	feature, err := b.store.ReadFeature(ref.ObjectID())
	if err != nil {
		return nil, fmt.Errorf("blame %q: %w", path, err)
	}
	var ft *object.FeatureTypeObj
	if ref.MetadataID != "" {
		if ft, err = b.store.ReadFeatureType(ref.MetadataID); err != nil && !object.IsNotFound(err) {
			return nil, fmt.Errorf("blame %q: %w", path, err)
		}
	}

	report := &Report{Path: ref.Path(), Feature: ref.ObjectID(), Attributes: make([]Attribution, len(feature.Values))}
	pending := make(map[int]struct{}, len(feature.Values))
	for i, v := range feature.Values {
		report.Attributes[i] = Attribution{Name: diff.AttributeName(ft, i), ValueAndCommit: ValueAndCommit{Value: v}}
		pending[i] = struct{}{}
	}
	attribute := func(id object.Hash, c *object.CommitObj, indexes []int) {
		for _, i := range indexes {
			a := &report.Attributes[i]
			a.Commit, a.Author, a.Timestamp = id, c.Author, c.AuthorTimestamp
			delete(pending, i)
		}
	}
	all := func() []int {
		out := make([]int, 0, len(pending))
		for i := range report.Attributes {
			if _, ok := pending[i]; ok {
				out = append(out, i)
			}
		}
		return out
	}

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if b.graph != nil {
			if sparse, err := b.graph.IsSparse(commit); err != nil {
				return nil, fmt.Errorf("blame: %w", err)
			} else if sparse {
				report.Incomplete = true
			}
		}
		parent, err := b.firstParent(commit, c)
		if err != nil {
			return nil, err
		}
		if parent == "" {
			attribute(commit, c, all())
			break
		}
		pc, err := b.store.ReadCommit(parent)
		if object.IsNotFound(err) {
			report.Incomplete = true
			attribute(commit, c, all())
			break
		}
		if err != nil {
			return nil, fmt.Errorf("blame: read commit %s: %w", parent.Short(), err)
		}

		changed, err := b.changedAttributes(ctx, pc.TreeHash, c.TreeHash, report)
		if err != nil {
			return nil, fmt.Errorf("blame %q at %s: %w", path, commit.Short(), err)
		}
		var hit []int
		for _, i := range all() {
			if changed == nil || changed[i] {
				hit = append(hit, i)
			}
		}
		attribute(commit, c, hit)
		commit, c = parent, pc
	}
	return report, nil
}

// changedAttributes diffs the blamed path between two trees. It returns
// nil when the feature did not exist in the old tree, and otherwise the
// attributes whose old value differs from the blamed one.
func (b *Blamer) changedAttributes(ctx context.Context, oldTree, newTree object.Hash, report *Report) (map[int]bool, error) {
	changed := map[int]bool{}
	for e, err := range b.differ.Diff(ctx, oldTree, newTree, diff.Options{Paths: []string{report.Path}}).All() {
		if err != nil {
			return nil, err
		}
		if e.Path() != report.Path || e.IsTree() {
			continue
		}
		if e.Type() != diff.Modified {
			return nil, nil
		}
		old, err := b.store.ReadFeature(e.OldID())
		if err != nil {
			return nil, err
		}
		for i, a := range report.Attributes {
			ov := object.Null()
			if i < len(old.Values) {
				ov = old.Values[i]
			}
			if !ov.Equal(a.Value) {
				changed[i] = true
			}
		}
	}
	return changed, nil
}

// firstParent prefers the revision graph, falling back to the commit for
// commits the graph has not indexed.
func (b *Blamer) firstParent(id object.Hash, c *object.CommitObj) (object.Hash, error) {
	if b.graph != nil {
		if rec, ok, err := b.graph.Record(id); err != nil {
			return "", fmt.Errorf("blame: %w", err)
		} else if ok && rec.Indexed {
			if len(rec.Parents) == 0 {
				return "", nil
			}
			return rec.Parents[0], nil
		}
	}
	if len(c.Parents) == 0 {
		return "", nil
	}
	return c.Parents[0], nil
}
