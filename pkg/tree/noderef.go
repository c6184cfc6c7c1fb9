package tree

import (
	"strings"

	"github.com/odvcencio/geogot/pkg/object"
)

// NodeRef is a tree entry resolved at a full path, carrying the feature
// type id in effect for it: the node's own override, or the one inherited
// from the nearest enclosing tree node that declares one.
type NodeRef struct {
	Node       object.Node
	ParentPath string
	MetadataID object.Hash
}

// Path returns the slash-separated path of the entry.
func (r NodeRef) Path() string { return JoinPath(r.ParentPath, r.Node.Name) }

// ObjectID returns the id of the referenced object.
func (r NodeRef) ObjectID() object.Hash { return r.Node.ObjectID }

// IsTree reports whether the entry is a subtree.
func (r NodeRef) IsTree() bool { return r.Node.IsTree() }

// RootRef returns the ref of the root tree id. Its path is empty.
func RootRef(id object.Hash) NodeRef {
	return NodeRef{Node: object.Node{Type: object.TypeTree, ObjectID: id}}
}

// Child returns the ref for n found inside the tree r points at.
func (r NodeRef) Child(n object.Node) NodeRef {
	return newRef(r.Path(), n, r.MetadataID)
}

func newRef(parent string, n object.Node, inherited object.Hash) NodeRef {
	md := n.MetadataID
	if md == "" {
		md = inherited
	}
	return NodeRef{Node: n, ParentPath: parent, MetadataID: md}
}

// JoinPath joins a parent path and a child name.
func JoinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// SplitPath splits a path into its parent path and final name.
func SplitPath(p string) (parent, name string) {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}

// Segments splits a path into its names, ignoring empty segments.
func Segments(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
