package tree

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/geogot/pkg/object"
)

// ErrNotTree is returned when an edit needs a tree where a feature is.
var ErrNotTree = errors.New("not a tree")

// Editor applies path-addressed edits to a root tree. Every tree on the
// path of an edit gets its own Builder; Commit rebuilds them bottom-up.
// A rebuilt tree keeps its entry in the parent, including the feature
// type it declares, with a fresh id and extent. Trees emptied by edits
// are kept.
type Editor struct {
	store *object.Store
	root  object.Hash
	dirs  map[string]*editDir
}

type editDir struct {
	node    object.Node // entry in the parent tree; zero for the root
	builder *Builder
}

// NewEditor starts editing root. An empty root means the empty tree.
func NewEditor(store *object.Store, root object.Hash) *Editor {
	e := &Editor{store: store}
	e.reset(root)
	return e
}

func (e *Editor) reset(root object.Hash) {
	if root == "" {
		root = object.EmptyTreeHash
	}
	e.root = root
	e.dirs = map[string]*editDir{"": {builder: NewBuilder(e.store, root)}}
}

// Root returns the tree the pending edits apply to.
func (e *Editor) Root() object.Hash { return e.root }

// Put stores n under parentPath, creating missing trees along the way.
// Putting a tree node discards pending edits beneath its path; later edits
// below it apply on top of the new node.
func (e *Editor) Put(parentPath string, n object.Node) error {
	parentPath = strings.Trim(parentPath, "/")
	d, err := e.dir(parentPath, true)
	if err != nil {
		return err
	}
	if err := d.builder.Put(n); err != nil {
		return fmt.Errorf("edit %q: %w", JoinPath(parentPath, n.Name), err)
	}
	e.drop(JoinPath(parentPath, n.Name))
	return nil
}

// PutRef stores ref at its own path, keeping its node unchanged.
func (e *Editor) PutRef(ref NodeRef) error {
	return e.Put(ref.ParentPath, ref.Node)
}

// Remove deletes the entry at path, with everything beneath it. Removing a
// missing path is a no-op.
func (e *Editor) Remove(path string) error {
	parentPath, name := SplitPath(strings.Trim(path, "/"))
	if name == "" {
		return fmt.Errorf("edit remove: %w: empty path", ErrInvalidNode)
	}
	d, err := e.dir(parentPath, false)
	if err != nil {
		return err
	}
	if d == nil {
		return nil
	}
	d.builder.Remove(name)
	e.drop(JoinPath(parentPath, name))
	return nil
}

// Get returns the entry at path as the pending edits leave it. A path
// below a feature does not exist.
func (e *Editor) Get(path string) (object.Node, bool, error) {
	parentPath, name := SplitPath(strings.Trim(path, "/"))
	if name == "" {
		return object.Node{}, false, fmt.Errorf("edit get: %w: empty path", ErrInvalidNode)
	}
	d, err := e.dir(parentPath, false)
	if errors.Is(err, ErrNotTree) {
		return object.Node{}, false, nil
	}
	if err != nil || d == nil {
		return object.Node{}, false, err
	}
	return d.builder.child(name)
}

// SetMetadata makes the tree at path declare feature type md, creating an
// empty tree when the path is missing. Its contents are kept.
func (e *Editor) SetMetadata(path string, md object.Hash) error {
	path = strings.Trim(path, "/")
	if path == "" {
		return fmt.Errorf("edit metadata: %w: the root has no entry", ErrInvalidNode)
	}
	d, err := e.dir(path, true)
	if err != nil {
		return err
	}
	d.node.MetadataID = md
	return nil
}

// dir returns the builder state of the tree at path. Missing trees are
// created when create is set; otherwise dir returns nil for them.
func (e *Editor) dir(path string, create bool) (*editDir, error) {
	if d, ok := e.dirs[path]; ok {
		return d, nil
	}
	parentPath, name := SplitPath(path)
	parent, err := e.dir(parentPath, create)
	if err != nil || parent == nil {
		return nil, err
	}
	n, ok, err := parent.builder.child(name)
	if err != nil {
		return nil, fmt.Errorf("edit %q: %w", path, err)
	}
	switch {
	case ok && !n.IsTree():
		return nil, fmt.Errorf("edit %q: %w", path, ErrNotTree)
	case !ok && !create:
		return nil, nil
	case !ok:
		n = object.Node{Name: name, Type: object.TypeTree, ObjectID: object.EmptyTreeHash}
	}
	d := &editDir{node: n, builder: NewBuilder(e.store, n.ObjectID)}
	e.dirs[path] = d
	return d, nil
}

// drop forgets the builders of path and everything beneath it.
func (e *Editor) drop(path string) {
	prefix := path + "/"
	for p := range e.dirs {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(e.dirs, p)
		}
	}
}

// Commit writes all pending edits and returns the new root id. The editor
// then continues from the new root.
func (e *Editor) Commit(ctx context.Context) (object.Hash, error) {
	paths := make([]string, 0, len(e.dirs))
	for p := range e.dirs {
		if p != "" {
			paths = append(paths, p)
		}
	}
	// Deepest first, so parents see the new ids of their children.
	sort.Slice(paths, func(i, j int) bool {
		di, dj := strings.Count(paths[i], "/"), strings.Count(paths[j], "/")
		if di != dj {
			return di > dj
		}
		return paths[i] < paths[j]
	})
	for _, p := range paths {
		d := e.dirs[p]
		id, tr, err := d.builder.Build(ctx)
		if err != nil {
			return "", fmt.Errorf("edit %q: %w", p, err)
		}
		n := d.node
		n.ObjectID = id
		n.Extent = extentOf(tr)
		parentPath, _ := SplitPath(p)
		if err := e.dirs[parentPath].builder.Put(n); err != nil {
			return "", fmt.Errorf("edit %q: %w", p, err)
		}
	}
	id, _, err := e.dirs[""].builder.Build(ctx)
	if err != nil {
		return "", err
	}
	e.reset(id)
	return id, nil
}
