package diff

import (
	"context"
	"fmt"
	"iter"
	"sort"

	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/tree"
)

// Options configures a diff.
type Options struct {
	// Paths restricts the diff to entries at or below these paths.
	Paths []string
	// ReportTrees adds an entry for every changed tree node, emitted
	// before the entries beneath it.
	ReportTrees bool
}

// Differ computes changes between trees of one store.
type Differ struct {
	store *object.Store
}

// New returns a Differ reading from store.
func New(store *object.Store) *Differ {
	return &Differ{store: store}
}

// Diff returns a lazy iterator over the changes from oldTree to newTree,
// in depth-first order with siblings sorted by name. Empty ids stand for
// the empty tree.
func (d *Differ) Diff(ctx context.Context, oldTree, newTree object.Hash, opts Options) *Iterator {
	if oldTree == "" {
		oldTree = object.EmptyTreeHash
	}
	if newTree == "" {
		newTree = object.EmptyTreeHash
	}
	oldRoot, newRoot := tree.RootRef(oldTree), tree.RootRef(newTree)
	return &Iterator{
		ctx:     ctx,
		store:   d.store,
		opts:    opts,
		filter:  newPathFilter(opts.Paths),
		oldRoot: &oldRoot,
		newRoot: &newRoot,
	}
}

// Changes collects every change from oldTree to newTree.
func (d *Differ) Changes(ctx context.Context, oldTree, newTree object.Hash, opts Options) ([]Entry, error) {
	var out []Entry
	for e, err := range d.Diff(ctx, oldTree, newTree, opts).All() {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Iterator walks two trees in lock-step. Pairs with equal ids are skipped
// without reading them, so the cost of a diff follows the size of the
// change rather than the size of the trees.
//
// The iterator holds no store resources: it may be abandoned at any time,
// and Close only marks it finished.
type Iterator struct {
	ctx     context.Context
	store   *object.Store
	opts    Options
	filter  pathFilter
	oldRoot *tree.NodeRef
	newRoot *tree.NodeRef

	// levels holds the pending entries of every tree being walked; the
	// last level belongs to the deepest one.
	levels  [][]Entry
	started bool
	cur     Entry
	err     error
	done    bool
}

// Next advances to the next change. It returns false when the diff is
// exhausted, failed, or closed.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	if !it.started {
		it.started = true
		if err := it.descend(it.oldRoot, it.newRoot); err != nil {
			return it.fail(err)
		}
	}
	for len(it.levels) > 0 {
		if err := it.ctx.Err(); err != nil {
			return it.fail(err)
		}
		top := len(it.levels) - 1
		if len(it.levels[top]) == 0 {
			it.levels = it.levels[:top]
			continue
		}
		e := it.levels[top][0]
		it.levels[top] = it.levels[top][1:]

		path := e.Path()
		if e.IsTree() {
			if it.filter.enters(path) {
				if err := it.descend(e.Old, e.New); err != nil {
					return it.fail(err)
				}
			}
			if !it.opts.ReportTrees || !it.filter.matches(path) {
				continue
			}
		} else if !it.filter.matches(path) {
			continue
		}
		it.cur = e
		return true
	}
	it.done = true
	return false
}

// Entry returns the current change.
func (it *Iterator) Entry() Entry { return it.cur }

// Err returns the error that stopped the iterator, if any.
func (it *Iterator) Err() error { return it.err }

// Close stops the iteration. It is safe to call more than once.
func (it *Iterator) Close() {
	it.done = true
	it.levels = nil
}

// All adapts the iterator to a range-over-func sequence. A failure is
// yielded once as the final pair. The iterator is closed when the loop
// ends.
func (it *Iterator) All() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		defer it.Close()
		for it.Next() {
			if !yield(it.Entry(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(Entry{}, err)
		}
	}
}

func (it *Iterator) fail(err error) bool {
	it.err = err
	it.done = true
	it.levels = nil
	return false
}

// descend queues the changes between the contents of two tree entries,
// either of which may be absent.
func (it *Iterator) descend(oldDir, newDir *tree.NodeRef) error {
	oldID, newID := object.EmptyTreeHash, object.EmptyTreeHash
	if oldDir != nil {
		oldID = oldDir.ObjectID()
	}
	if newDir != nil {
		newID = newDir.ObjectID()
	}
	if oldID == newID {
		return nil
	}
	var level []Entry
	if err := it.compare(oldID, newID, 0, oldDir, newDir, &level); err != nil {
		path := ""
		if newDir != nil {
			path = newDir.Path()
		} else if oldDir != nil {
			path = oldDir.Path()
		}
		return fmt.Errorf("diff %q: %w", path, err)
	}
	// Buckets yield names in hash order. Stable, so of two entries at the
	// same name the feature stays first.
	sort.SliceStable(level, func(i, j int) bool {
		return nameOf(level[i]) < nameOf(level[j])
	})
	if len(level) > 0 {
		it.levels = append(it.levels, level)
	}
	return nil
}

func nameOf(e Entry) string {
	if e.New != nil {
		return e.New.Node.Name
	}
	return e.Old.Node.Name
}

// compare appends the changes between two trees at the same bucket depth.
// Bucket pairs are compared index by index, skipping equal ids; a bucketed
// tree facing a direct one is expanded.
func (it *Iterator) compare(oldID, newID object.Hash, depth int, oldDir, newDir *tree.NodeRef, out *[]Entry) error {
	if oldID == newID {
		return nil
	}
	ot, err := it.store.ReadTree(oldID)
	if err != nil {
		return err
	}
	nt, err := it.store.ReadTree(newID)
	if err != nil {
		return err
	}

	if len(ot.Buckets) > 0 && len(nt.Buckets) > 0 {
		i, j := 0, 0
		for i < len(ot.Buckets) || j < len(nt.Buckets) {
			oldBucket, newBucket := object.EmptyTreeHash, object.EmptyTreeHash
			switch {
			case j == len(nt.Buckets) || (i < len(ot.Buckets) && ot.Buckets[i].Index < nt.Buckets[j].Index):
				oldBucket = ot.Buckets[i].TreeID
				i++
			case i == len(ot.Buckets) || nt.Buckets[j].Index < ot.Buckets[i].Index:
				newBucket = nt.Buckets[j].TreeID
				j++
			default:
				oldBucket, newBucket = ot.Buckets[i].TreeID, nt.Buckets[j].TreeID
				i++
				j++
			}
			if err := it.compare(oldBucket, newBucket, depth+1, oldDir, newDir, out); err != nil {
				return err
			}
		}
		return nil
	}

	oldNodes, err := tree.Entries(it.store, oldID)
	if err != nil {
		return err
	}
	newNodes, err := tree.Entries(it.store, newID)
	if err != nil {
		return err
	}
	i, j := 0, 0
	for i < len(oldNodes) || j < len(newNodes) {
		switch {
		case j == len(newNodes) || (i < len(oldNodes) && oldNodes[i].Name < newNodes[j].Name):
			*out = append(*out, Entry{Old: childRef(oldDir, oldNodes[i])})
			i++
		case i == len(oldNodes) || newNodes[j].Name < oldNodes[i].Name:
			*out = append(*out, Entry{New: childRef(newDir, newNodes[j])})
			j++
		default:
			a, b := oldNodes[i], newNodes[j]
			i++
			j++
			switch {
			case sameNode(a, b):
			case a.IsTree() && !b.IsTree():
				// The feature side goes first, so every entry at a path
				// comes before the entries beneath it.
				*out = append(*out, Entry{New: childRef(newDir, b)}, Entry{Old: childRef(oldDir, a)})
			case b.IsTree() && !a.IsTree():
				*out = append(*out, Entry{Old: childRef(oldDir, a)}, Entry{New: childRef(newDir, b)})
			default:
				*out = append(*out, Entry{Old: childRef(oldDir, a), New: childRef(newDir, b)})
			}
		}
	}
	return nil
}

func childRef(dir *tree.NodeRef, n object.Node) *tree.NodeRef {
	ref := dir.Child(n)
	return &ref
}

func sameNode(a, b object.Node) bool {
	return a.ObjectID == b.ObjectID && a.MetadataID == b.MetadataID && a.Type == b.Type
}
