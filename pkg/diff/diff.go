package diff

import (
	"strings"

	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/tree"
)

// ChangeType classifies what happened at a path between two trees.
type ChangeType int

const (
	Added    ChangeType = iota // Entry exists only in the new tree.
	Removed                    // Entry exists only in the old tree.
	Modified                   // Entry exists in both trees with a different object or feature type.
)

func (c ChangeType) String() string {
	switch c {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	}
	return "unknown"
}

// Entry is one change between two trees. Old and New are never both nil.
type Entry struct {
	Old *tree.NodeRef // nil for Added.
	New *tree.NodeRef // nil for Removed.
}

// Type derives the change type from which sides are present.
func (e Entry) Type() ChangeType {
	switch {
	case e.Old == nil:
		return Added
	case e.New == nil:
		return Removed
	}
	return Modified
}

// Path returns the path of the changed entry.
func (e Entry) Path() string {
	if e.New != nil {
		return e.New.Path()
	}
	return e.Old.Path()
}

// OldID returns the old object id, or "" when the entry was added.
func (e Entry) OldID() object.Hash {
	if e.Old == nil {
		return ""
	}
	return e.Old.ObjectID()
}

// NewID returns the new object id, or "" when the entry was removed.
func (e Entry) NewID() object.Hash {
	if e.New == nil {
		return ""
	}
	return e.New.ObjectID()
}

// IsTree reports whether the entry is a tree node.
func (e Entry) IsTree() bool {
	if e.New != nil {
		return e.New.IsTree()
	}
	return e.Old.IsTree()
}

// ComparePaths orders paths the way a diff emits them: segment by segment
// in name order, a tree before everything beneath it.
func ComparePaths(a, b string) int {
	for {
		as, arest, amore := strings.Cut(a, "/")
		bs, brest, bmore := strings.Cut(b, "/")
		if c := strings.Compare(as, bs); c != 0 {
			return c
		}
		switch {
		case !amore && !bmore:
			return 0
		case !amore:
			return -1
		case !bmore:
			return 1
		}
		a, b = arest, brest
	}
}

// pathFilter restricts a diff to entries at or below a set of paths.
type pathFilter []string

func newPathFilter(paths []string) pathFilter {
	var f pathFilter
	for _, p := range paths {
		if p = strings.Trim(p, "/"); p != "" {
			f = append(f, p)
		}
	}
	return f
}

// matches reports whether p is one of the filter paths or lies below one.
func (f pathFilter) matches(p string) bool {
	if len(f) == 0 {
		return true
	}
	for _, q := range f {
		if p == q || strings.HasPrefix(p, q+"/") {
			return true
		}
	}
	return false
}

// enters reports whether the tree at p can hold matching entries.
func (f pathFilter) enters(p string) bool {
	if f.matches(p) {
		return true
	}
	for _, q := range f {
		if strings.HasPrefix(q, p+"/") {
			return true
		}
	}
	return false
}
