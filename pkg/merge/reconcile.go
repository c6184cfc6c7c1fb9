package merge

import (
	"fmt"

	"github.com/odvcencio/geogot/pkg/diff"
	"github.com/odvcencio/geogot/pkg/object"
)

// classify reports the result for one path given every entry each side
// produced there. Features and trees at the same path are classified
// separately.
func (e *Engine) classify(ours, theirs []diff.Entry, c Consumer) error {
	of, ot := split(ours)
	tf, tt := split(theirs)
	if of != nil || tf != nil {
		if err := e.classifyFeature(of, tf, c); err != nil {
			return err
		}
	}
	if ot != nil || tt != nil {
		classifyTree(ot, tt, c)
	}
	return nil
}

// split separates a side's entries at one path into its feature entry and
// its tree entry, either of which may be missing.
func split(entries []diff.Entry) (feature, dir *diff.Entry) {
	for i := range entries {
		if entries[i].IsTree() {
			dir = &entries[i]
		} else {
			feature = &entries[i]
		}
	}
	return feature, dir
}

func (e *Engine) classifyFeature(ours, theirs *diff.Entry, c Consumer) error {
	switch {
	case theirs == nil:
		c.Unconflicted(*ours)
		return nil
	case ours == nil:
		c.Unconflicted(*theirs)
		return nil
	}

	conflict := func(kind ConflictKind) {
		c.Conflicted(Conflict{
			Path:     ours.Path(),
			Kind:     kind,
			Ancestor: ancestorID(ours, theirs),
			Ours:     ours.NewID(),
			Theirs:   theirs.NewID(),
		})
	}

	ot, tt := ours.Type(), theirs.Type()
	switch {
	case ot == diff.Removed && tt == diff.Removed:
		c.Unconflicted(*ours)
		return nil
	case ot == diff.Removed:
		conflict(ConflictDeleteModify)
		return nil
	case tt == diff.Removed:
		conflict(ConflictModifyDelete)
		return nil
	case ours.NewID() == theirs.NewID() && ours.New.MetadataID == theirs.New.MetadataID:
		c.Unconflicted(*ours)
		return nil
	case ot == diff.Added || tt == diff.Added:
		conflict(ConflictAddAdd)
		return nil
	}

	// Both sides modified the feature. Its type may change on one side
	// only; the result keeps that side's node.
	typed := ours
	am, om, tm := ours.Old.MetadataID, ours.New.MetadataID, theirs.New.MetadataID
	switch {
	case om != tm && om != am && tm != am:
		conflict(ConflictMetadata)
		return nil
	case om == am && tm != am:
		typed = theirs
	}

	info, ok, err := e.reconcile(ours, theirs, typed)
	if err != nil {
		if object.IsNotFound(err) {
			e.logger.Warn("merge: feature missing, reporting conflict", "path", ours.Path(), "error", err)
			conflict(ConflictModifyModify)
			return nil
		}
		return fmt.Errorf("merge %q: %w", ours.Path(), err)
	}
	switch {
	case !ok:
		conflict(ConflictModifyModify)
	case info.sameAs(ours):
		c.Unconflicted(*ours)
	case info.sameAs(theirs):
		c.Unconflicted(*theirs)
	default:
		c.Merged(info)
	}
	return nil
}

// sameAs reports whether the merge result is exactly the new side of e,
// feature type included.
func (f FeatureInfo) sameAs(e *diff.Entry) bool {
	return f.ID() == e.NewID() &&
		f.Ref.MetadataID == e.New.MetadataID &&
		f.Ref.Node.MetadataID == e.New.Node.MetadataID
}

func ancestorID(ours, theirs *diff.Entry) object.Hash {
	if ours.Old != nil {
		return ours.OldID()
	}
	return theirs.OldID()
}

// reconcile merges two modifications of one feature attribute by
// attribute. Every attribute takes the value of the side that changed it;
// when both sides changed an attribute to different values the feature
// cannot be merged and ok is false. The result is placed on the node of
// typed, one of ours or theirs, whose feature type wins.
func (e *Engine) reconcile(ours, theirs, typed *diff.Entry) (FeatureInfo, bool, error) {
	base, other := ours, theirs
	if typed == theirs {
		base, other = theirs, ours
	}
	anc, err := e.store.ReadFeature(base.OldID())
	if err != nil {
		return FeatureInfo{}, false, err
	}
	bf, err := e.store.ReadFeature(base.NewID())
	if err != nil {
		return FeatureInfo{}, false, err
	}
	xf, err := e.store.ReadFeature(other.NewID())
	if err != nil {
		return FeatureInfo{}, false, err
	}

	n := max(len(anc.Values), len(bf.Values), len(xf.Values))
	merged := &object.FeatureObj{Values: make([]object.Value, n)}
	for i := range n {
		a, b, x := valueAt(anc, i), valueAt(bf, i), valueAt(xf, i)
		switch {
		case b.Equal(a):
			merged.Values[i] = x
		case x.Equal(a), b.Equal(x):
			merged.Values[i] = b
		default:
			return FeatureInfo{}, false, nil
		}
	}
	id, err := object.HashOf(merged)
	if err != nil {
		return FeatureInfo{}, false, err
	}

	ref := *base.New
	ref.Node.ObjectID = id
	if e.geometryFrom(ref.MetadataID, merged, xf, bf) {
		ref.Node.Extent = other.New.Node.Extent
	}
	return FeatureInfo{
		Ref:      ref,
		Feature:  merged,
		Ancestor: ours.OldID(),
		Ours:     ours.NewID(),
		Theirs:   theirs.NewID(),
	}, true, nil
}

// geometryFrom reports whether merged carries the geometry of from rather
// than that of base, according to the feature type md.
func (e *Engine) geometryFrom(md object.Hash, merged, from, base *object.FeatureObj) bool {
	if md == "" {
		return false
	}
	ft, err := e.store.ReadFeatureType(md)
	if err != nil {
		return false
	}
	for i, a := range ft.Attributes {
		if a.Kind == object.KindGeometry {
			g := valueAt(merged, i)
			return g.Equal(valueAt(from, i)) && !g.Equal(valueAt(base, i))
		}
	}
	return false
}

func valueAt(f *object.FeatureObj, i int) object.Value {
	if i < len(f.Values) {
		return f.Values[i]
	}
	return object.Null()
}

// classifyTree handles tree entries, which only carry a change of their
// own when a tree is added, removed or declares a new feature type. Any
// other change to a tree is the sum of the changes beneath it.
func classifyTree(ours, theirs *diff.Entry, c Consumer) {
	switch {
	case theirs == nil:
		if ownChange(ours) {
			c.Unconflicted(*ours)
		}
		return
	case ours == nil:
		if ownChange(theirs) {
			c.Unconflicted(*theirs)
		}
		return
	}

	or, tr := ours.Type() == diff.Removed, theirs.Type() == diff.Removed
	switch {
	case or && tr:
		c.Unconflicted(*ours)
		return
	case or || tr:
		// The removal surfaces as conflicts or removals of the entries
		// beneath.
		return
	}

	om, tm := ours.New.Node.MetadataID, theirs.New.Node.MetadataID
	var am object.Hash
	if ours.Old != nil {
		am = ours.Old.Node.MetadataID
	}
	switch {
	case om == tm:
		if ownChange(ours) {
			c.Unconflicted(*ours)
		}
	case tm == am && ours.Old != nil:
		c.Unconflicted(*ours)
	case om == am && ours.Old != nil:
		c.Unconflicted(*theirs)
	default:
		c.Conflicted(Conflict{
			Path:     ours.Path(),
			Kind:     ConflictMetadata,
			Ancestor: ancestorID(ours, theirs),
			Ours:     ours.NewID(),
			Theirs:   theirs.NewID(),
		})
	}
}

func ownChange(e *diff.Entry) bool {
	if e.Old == nil || e.New == nil {
		return true
	}
	return e.Old.Node.MetadataID != e.New.Node.MetadataID
}
