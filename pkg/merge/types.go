package merge

import (
	"github.com/odvcencio/geogot/pkg/diff"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/tree"
)

// ConflictKind identifies why a path could not be merged.
type ConflictKind string

const (
	ConflictModifyModify ConflictKind = "modify-modify" // Both modified differently
	ConflictModifyDelete ConflictKind = "modify-delete" // We modified, they deleted
	ConflictDeleteModify ConflictKind = "delete-modify" // We deleted, they modified
	ConflictAddAdd       ConflictKind = "add-add"       // Both added with different data
	ConflictMetadata     ConflictKind = "metadata"      // Both changed the feature type differently
)

// Conflict is a path where ours and theirs diverge from the ancestor in
// ways the merge policy cannot reconcile. An empty id means the entry is
// absent on that side.
type Conflict struct {
	Path     string
	Kind     ConflictKind
	Ancestor object.Hash
	Ours     object.Hash
	Theirs   object.Hash
}

// FeatureInfo describes a feature synthesized by reconciling the
// attribute changes of both sides. The feature is not written to the
// store; Ref.Node.ObjectID is the id it will have once written.
type FeatureInfo struct {
	Ref      tree.NodeRef
	Feature  *object.FeatureObj
	Ancestor object.Hash
	Ours     object.Hash
	Theirs   object.Hash
}

// Path returns the path of the merged feature.
func (f FeatureInfo) Path() string { return f.Ref.Path() }

// ID returns the id of the synthesized feature.
func (f FeatureInfo) ID() object.Hash { return f.Ref.ObjectID() }

// Consumer receives the results of a merge scenario, path by path in diff
// order. Finished is called once after the last result, and only when the
// scenario completes without error.
type Consumer interface {
	Conflicted(c Conflict)
	// Unconflicted receives a change to apply as is. Old is the ancestor
	// entry; New is the value the merged tree should hold.
	Unconflicted(e diff.Entry)
	Merged(f FeatureInfo)
	Finished()
}

// Counts tallies the results of a scenario.
type Counts struct {
	Conflicted   int
	Unconflicted int
	Merged       int
}

// Report is a Consumer that only counts.
type Report struct {
	Counts Counts
	Done   bool
}

func (r *Report) Conflicted(Conflict)     { r.Counts.Conflicted++ }
func (r *Report) Unconflicted(diff.Entry) { r.Counts.Unconflicted++ }
func (r *Report) Merged(FeatureInfo)      { r.Counts.Merged++ }
func (r *Report) Finished()               { r.Done = true }

// HasConflicts reports whether any path conflicted.
func (r *Report) HasConflicts() bool { return r.Counts.Conflicted > 0 }

// Collector is a Consumer that keeps every result.
type Collector struct {
	Conflicts []Conflict
	Clean     []diff.Entry
	Merges    []FeatureInfo
	Done      bool
}

func (c *Collector) Conflicted(x Conflict)     { c.Conflicts = append(c.Conflicts, x) }
func (c *Collector) Unconflicted(e diff.Entry) { c.Clean = append(c.Clean, e) }
func (c *Collector) Merged(f FeatureInfo)      { c.Merges = append(c.Merges, f) }
func (c *Collector) Finished()                 { c.Done = true }

// Counts returns the number of results of each kind.
func (c *Collector) Counts() Counts {
	return Counts{Conflicted: len(c.Conflicts), Unconflicted: len(c.Clean), Merged: len(c.Merges)}
}

type tee []Consumer

// Tee returns a Consumer forwarding every result to each of consumers in
// order.
func Tee(consumers ...Consumer) Consumer { return tee(consumers) }

func (t tee) Conflicted(c Conflict) {
	for _, x := range t {
		x.Conflicted(c)
	}
}

func (t tee) Unconflicted(e diff.Entry) {
	for _, x := range t {
		x.Unconflicted(e)
	}
}

func (t tee) Merged(f FeatureInfo) {
	for _, x := range t {
		x.Merged(f)
	}
}

func (t tee) Finished() {
	for _, x := range t {
		x.Finished()
	}
}
