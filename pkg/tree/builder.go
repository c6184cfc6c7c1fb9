package tree

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/geogot/pkg/object"
)

// ErrInvalidNode is returned when a node cannot be stored in a tree.
var ErrInvalidNode = errors.New("invalid tree node")

// Builder applies insertions and removals of direct children to a base
// tree and produces the canonical tree holding the result. The result
// depends only on the final set of children, never on the order of the
// edits or on the shape of the base.
//
// A tree with at most MaxNodes children stores them directly, sorted by
// name. A larger tree spreads them over up to BucketsPerLevel buckets by
// BucketIndex, each bucket being a tree normalized the same way one depth
// further down. Buckets of the base that no edit touches are reused by id.
type Builder struct {
	store   *object.Store
	base    object.Hash
	puts    map[string]object.Node
	removes map[string]struct{}
}

// NewBuilder returns a builder editing base. An empty base means the empty
// tree.
func NewBuilder(store *object.Store, base object.Hash) *Builder {
	if base == "" {
		base = object.EmptyTreeHash
	}
	return &Builder{
		store:   store,
		base:    base,
		puts:    make(map[string]object.Node),
		removes: make(map[string]struct{}),
	}
}

// Base returns the id of the tree being edited.
func (b *Builder) Base() object.Hash { return b.base }

// Put adds n, replacing any child with the same name.
func (b *Builder) Put(n object.Node) error {
	if err := checkNode(n); err != nil {
		return err
	}
	delete(b.removes, n.Name)
	b.puts[n.Name] = n
	return nil
}

// Remove deletes the child called name. Removing an absent child is not
// an error.
func (b *Builder) Remove(name string) {
	delete(b.puts, name)
	b.removes[name] = struct{}{}
}

// child returns the child called name as it will appear after Build.
func (b *Builder) child(name string) (object.Node, bool, error) {
	if n, ok := b.puts[name]; ok {
		return n, true, nil
	}
	if _, ok := b.removes[name]; ok {
		return object.Node{}, false, nil
	}
	return FindChild(b.store, b.base, name)
}

func checkNode(n object.Node) error {
	switch {
	case n.Name == "" || strings.Contains(n.Name, "/"):
		return fmt.Errorf("%w: bad name %q", ErrInvalidNode, n.Name)
	case n.Type != object.TypeFeature && n.Type != object.TypeTree:
		return fmt.Errorf("%w: %q has type %q", ErrInvalidNode, n.Name, n.Type)
	case n.ObjectID == "":
		return fmt.Errorf("%w: %q has no object id", ErrInvalidNode, n.Name)
	}
	return nil
}

type changeSet struct {
	puts    []object.Node
	removes []string
}

type built struct {
	id   object.Hash
	tree *object.TreeObj
	// count is the number of direct children, or -1 when it was not
	// needed and so not computed.
	count int
}

// Build writes the resulting tree, and every new bucket beneath it, to the
// store and returns its id. The returned tree is shared with the store's
// cache and must not be modified.
func (b *Builder) Build(ctx context.Context) (object.Hash, *object.TreeObj, error) {
	var cs changeSet
	for _, n := range b.puts {
		cs.puts = append(cs.puts, n)
	}
	for name := range b.removes {
		cs.removes = append(cs.removes, name)
	}
	r, err := b.apply(ctx, b.base, 0, cs)
	if err != nil {
		return "", nil, fmt.Errorf("build tree: %w", err)
	}
	return r.id, r.tree, nil
}

func (b *Builder) apply(ctx context.Context, base object.Hash, depth int, cs changeSet) (built, error) {
	if err := ctx.Err(); err != nil {
		return built{}, err
	}
	tr, err := b.store.ReadTree(base)
	if err != nil {
		return built{}, fmt.Errorf("read base %s: %w", base.Short(), err)
	}
	if len(tr.Buckets) == 0 {
		return b.applyDirect(ctx, tr, depth, cs)
	}
	return b.applyBuckets(ctx, tr, depth, cs)
}

func (b *Builder) applyDirect(ctx context.Context, tr *object.TreeObj, depth int, cs changeSet) (built, error) {
	entries := make(map[string]object.Node, len(tr.Nodes)+len(cs.puts))
	for _, n := range tr.Nodes {
		entries[n.Name] = n
	}
	for _, name := range cs.removes {
		delete(entries, name)
	}
	for _, n := range cs.puts {
		entries[n.Name] = n
	}
	nodes := make([]object.Node, 0, len(entries))
	for _, n := range entries {
		nodes = append(nodes, n)
	}
	sortNodes(nodes)
	return b.write(ctx, nodes, depth)
}

func (b *Builder) applyBuckets(ctx context.Context, tr *object.TreeObj, depth int, cs changeSet) (built, error) {
	groups := make(map[int]*changeSet)
	group := func(name string) *changeSet {
		idx := BucketIndex(name, depth)
		g, ok := groups[idx]
		if !ok {
			g = &changeSet{}
			groups[idx] = g
		}
		return g
	}
	for _, n := range cs.puts {
		g := group(n.Name)
		g.puts = append(g.puts, n)
	}
	for _, name := range cs.removes {
		g := group(name)
		g.removes = append(g.removes, name)
	}

	buckets := make(map[int]object.Bucket, len(tr.Buckets))
	for _, bk := range tr.Buckets {
		buckets[bk.Index] = bk
	}
	rebuilt := make(map[int]built, len(groups))
	for idx, g := range groups {
		sub := object.EmptyTreeHash
		if bk, ok := buckets[idx]; ok {
			sub = bk.TreeID
		}
		r, err := b.apply(ctx, sub, depth+1, *g)
		if err != nil {
			return built{}, fmt.Errorf("bucket %d: %w", idx, err)
		}
		if r.tree.IsEmpty() {
			delete(buckets, idx)
			continue
		}
		buckets[idx] = object.Bucket{Index: idx, TreeID: r.id, Extent: extentOf(r.tree)}
		rebuilt[idx] = r
	}

	count := -1
	if len(cs.removes) > 0 {
		// Only removals can bring a split tree back under the threshold.
		total := 0
		for idx, bk := range buckets {
			if r, ok := rebuilt[idx]; ok && r.count >= 0 {
				total += r.count
				continue
			}
			n, err := countEntries(b.store, bk.TreeID)
			if err != nil {
				return built{}, fmt.Errorf("bucket %d: %w", idx, err)
			}
			total += n
		}
		if !splitsAt(total, depth) {
			return b.collapse(ctx, buckets, rebuilt, depth)
		}
		count = total
	}

	idxs := make([]int, 0, len(buckets))
	for idx := range buckets {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)
	out := &object.TreeObj{Buckets: make([]object.Bucket, 0, len(idxs))}
	for _, idx := range idxs {
		bk := buckets[idx]
		var sub *object.TreeObj
		if r, ok := rebuilt[idx]; ok {
			sub = r.tree
		} else {
			var err error
			if sub, err = b.store.ReadTree(bk.TreeID); err != nil {
				return built{}, fmt.Errorf("bucket %d: %w", idx, err)
			}
		}
		out.Buckets = append(out.Buckets, bk)
		out.Size += sub.Size
		out.NumTrees += sub.NumTrees
	}
	id, err := b.store.Put(out)
	if err != nil {
		return built{}, err
	}
	return built{id: id, tree: out, count: count}, nil
}

// collapse gathers the children of every bucket into one direct tree.
func (b *Builder) collapse(ctx context.Context, buckets map[int]object.Bucket, rebuilt map[int]built, depth int) (built, error) {
	var nodes []object.Node
	for idx, bk := range buckets {
		var (
			sub []object.Node
			err error
		)
		if r, ok := rebuilt[idx]; ok {
			sub, err = entriesOf(b.store, r.tree)
		} else {
			sub, err = Entries(b.store, bk.TreeID)
		}
		if err != nil {
			return built{}, fmt.Errorf("bucket %d: %w", idx, err)
		}
		nodes = append(nodes, sub...)
	}
	sortNodes(nodes)
	return b.write(ctx, nodes, depth)
}

// write stores the canonical tree for nodes, which must be sorted by name
// and unique.
func (b *Builder) write(ctx context.Context, nodes []object.Node, depth int) (built, error) {
	if !splitsAt(len(nodes), depth) {
		out := &object.TreeObj{Nodes: nodes}
		for _, n := range nodes {
			if !n.IsTree() {
				out.Size++
				continue
			}
			sub, err := b.store.ReadTree(n.ObjectID)
			if err != nil {
				return built{}, fmt.Errorf("subtree %q: %w", n.Name, err)
			}
			out.Size += sub.Size
			out.NumTrees += 1 + sub.NumTrees
		}
		id, err := b.store.Put(out)
		if err != nil {
			return built{}, err
		}
		return built{id: id, tree: out, count: len(nodes)}, nil
	}

	var groups [BucketsPerLevel][]object.Node
	for _, n := range nodes {
		idx := BucketIndex(n.Name, depth)
		groups[idx] = append(groups[idx], n)
	}
	out := &object.TreeObj{}
	for idx, g := range groups {
		if len(g) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return built{}, err
		}
		r, err := b.write(ctx, g, depth+1)
		if err != nil {
			return built{}, err
		}
		out.Buckets = append(out.Buckets, object.Bucket{Index: idx, TreeID: r.id, Extent: extentOf(r.tree)})
		out.Size += r.tree.Size
		out.NumTrees += r.tree.NumTrees
	}
	id, err := b.store.Put(out)
	if err != nil {
		return built{}, err
	}
	return built{id: id, tree: out, count: len(nodes)}, nil
}

func sortNodes(nodes []object.Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
}
