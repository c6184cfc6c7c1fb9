package tree

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/geogot/pkg/object"
)

// ErrPathNotFound is returned when a path does not resolve to a tree entry.
var ErrPathNotFound = errors.New("path not found")

// SkipTree may be returned by a WalkFunc visiting a tree entry to skip its
// contents.
var SkipTree = errors.New("skip this tree")

// WalkFunc is called for every entry visited by Walk.
type WalkFunc func(ref NodeRef) error

// Lookup resolves path inside the tree root.
func Lookup(store *object.Store, root object.Hash, path string) (NodeRef, error) {
	segs := Segments(path)
	if len(segs) == 0 {
		return NodeRef{}, fmt.Errorf("lookup %q: %w", path, ErrPathNotFound)
	}

	cur := RootRef(root)
	for _, seg := range segs {
		if !cur.IsTree() {
			return NodeRef{}, fmt.Errorf("lookup %q: %s is not a tree: %w", path, cur.Path(), ErrPathNotFound)
		}
		n, ok, err := FindChild(store, cur.ObjectID(), seg)
		if err != nil {
			return NodeRef{}, fmt.Errorf("lookup %q: %w", path, err)
		}
		if !ok {
			return NodeRef{}, fmt.Errorf("lookup %q: %w", path, ErrPathNotFound)
		}
		cur = cur.Child(n)
	}
	return cur, nil
}

// FindChild looks up the direct child name of the tree id, descending
// through buckets as needed.
func FindChild(store *object.Store, id object.Hash, name string) (object.Node, bool, error) {
	for depth := 0; ; depth++ {
		tr, err := store.ReadTree(id)
		if err != nil {
			return object.Node{}, false, err
		}
		if len(tr.Buckets) == 0 {
			i := sort.Search(len(tr.Nodes), func(i int) bool { return tr.Nodes[i].Name >= name })
			if i < len(tr.Nodes) && tr.Nodes[i].Name == name {
				return tr.Nodes[i], true, nil
			}
			return object.Node{}, false, nil
		}
		idx := BucketIndex(name, depth)
		i := sort.Search(len(tr.Buckets), func(i int) bool { return tr.Buckets[i].Index >= idx })
		if i == len(tr.Buckets) || tr.Buckets[i].Index != idx {
			return object.Node{}, false, nil
		}
		id = tr.Buckets[i].TreeID
	}
}

// Entries returns the direct children of the tree id in name order,
// flattening buckets.
func Entries(store *object.Store, id object.Hash) ([]object.Node, error) {
	tr, err := store.ReadTree(id)
	if err != nil {
		return nil, err
	}
	return entriesOf(store, tr)
}

func entriesOf(store *object.Store, tr *object.TreeObj) ([]object.Node, error) {
	if len(tr.Buckets) == 0 {
		return tr.Nodes, nil
	}
	var out []object.Node
	for _, b := range tr.Buckets {
		sub, err := Entries(store, b.TreeID)
		if err != nil {
			return nil, fmt.Errorf("bucket %d: %w", b.Index, err)
		}
		out = append(out, sub...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// countEntries returns the number of direct children of the tree id
// without materializing them.
func countEntries(store *object.Store, id object.Hash) (int, error) {
	tr, err := store.ReadTree(id)
	if err != nil {
		return 0, err
	}
	if len(tr.Buckets) == 0 {
		return len(tr.Nodes), nil
	}
	total := 0
	for _, b := range tr.Buckets {
		n, err := countEntries(store, b.TreeID)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Walk visits every entry beneath root depth-first, siblings in name
// order, calling fn on a tree entry before its contents. Entries under
// prefix only are visited when prefix is non-empty.
func Walk(ctx context.Context, store *object.Store, root object.Hash, prefix string, fn WalkFunc) error {
	start := RootRef(root)
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		ref, err := Lookup(store, root, prefix)
		if err != nil {
			return err
		}
		if err := fn(ref); err != nil {
			if errors.Is(err, SkipTree) {
				return nil
			}
			return err
		}
		if !ref.IsTree() {
			return nil
		}
		start = ref
	}
	return walkTree(ctx, store, start, fn)
}

func walkTree(ctx context.Context, store *object.Store, dir NodeRef, fn WalkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	children, err := Entries(store, dir.ObjectID())
	if err != nil {
		return fmt.Errorf("walk %q: %w", dir.Path(), err)
	}
	for _, n := range children {
		ref := dir.Child(n)
		err := fn(ref)
		if errors.Is(err, SkipTree) {
			continue
		}
		if err != nil {
			return err
		}
		if ref.IsTree() {
			if err := walkTree(ctx, store, ref, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
