package object

// Hash is a 64-character hex-encoded SHA-256 digest.
type Hash string

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeTree        ObjectType = "tree"
	TypeFeature     ObjectType = "feature"
	TypeFeatureType ObjectType = "featuretype"
	TypeCommit      ObjectType = "commit"
	TypeTag         ObjectType = "tag"
)

// Valid reports whether t names one of the known object variants.
func (t ObjectType) Valid() bool {
	switch t {
	case TypeTree, TypeFeature, TypeFeatureType, TypeCommit, TypeTag:
		return true
	}
	return false
}

// Object is implemented by every revision object variant: *TreeObj,
// *FeatureObj, *FeatureTypeObj, *CommitObj and *TagObj. The set is closed.
type Object interface {
	Type() ObjectType
	isObject()
}

// Envelope is an axis-aligned bounding box in the feature collection's
// coordinate reference system.
type Envelope struct {
	MinX, MinY, MaxX, MaxY float64
}

// Expand returns the smallest envelope covering both e and o. A nil
// receiver or argument is treated as empty.
func (e *Envelope) Expand(o *Envelope) *Envelope {
	switch {
	case e == nil && o == nil:
		return nil
	case e == nil:
		c := *o
		return &c
	case o == nil:
		c := *e
		return &c
	}
	return &Envelope{
		MinX: min(e.MinX, o.MinX),
		MinY: min(e.MinY, o.MinY),
		MaxX: max(e.MaxX, o.MaxX),
		MaxY: max(e.MaxY, o.MaxY),
	}
}

// Equal reports whether two possibly-nil envelopes cover the same region.
func (e *Envelope) Equal(o *Envelope) bool {
	if e == nil || o == nil {
		return e == nil && o == nil
	}
	return *e == *o
}

// Node is one named entry of a tree: either a feature or a subtree.
type Node struct {
	Name     string
	ObjectID Hash
	Type     ObjectType // TypeFeature or TypeTree
	// MetadataID, when set, overrides the feature type declared by the
	// parent tree for this entry alone.
	MetadataID Hash
	Extent     *Envelope
}

// IsTree reports whether the node points at a subtree.
func (n Node) IsTree() bool { return n.Type == TypeTree }

// Equal reports whether two nodes are identical in every field.
func (n Node) Equal(o Node) bool {
	return n.Name == o.Name &&
		n.ObjectID == o.ObjectID &&
		n.Type == o.Type &&
		n.MetadataID == o.MetadataID &&
		n.Extent.Equal(o.Extent)
}

// Bucket references one shard of a large tree.
type Bucket struct {
	Index  int
	TreeID Hash
	Extent *Envelope
}

// TreeObj is a canonical tree. It holds either direct Nodes (sorted by
// name) or Buckets (sorted by index), never both.
type TreeObj struct {
	Nodes   []Node
	Buckets []Bucket
	// Size counts every feature beneath this tree, NumTrees every subtree.
	Size     int64
	NumTrees int64
}

func (*TreeObj) Type() ObjectType { return TypeTree }
func (*TreeObj) isObject()        {}

// IsEmpty reports whether the tree has no children at all.
func (t *TreeObj) IsEmpty() bool {
	return len(t.Nodes) == 0 && len(t.Buckets) == 0
}

// FeatureObj is an ordered list of attribute values whose order is given
// by the governing FeatureTypeObj.
type FeatureObj struct {
	Values []Value
}

func (*FeatureObj) Type() ObjectType { return TypeFeature }
func (*FeatureObj) isObject()        {}

// AttributeDescriptor describes one attribute of a feature type.
type AttributeDescriptor struct {
	Name     string
	Kind     ValueKind
	Nillable bool
	CRS      string // only meaningful for KindGeometry
}

// FeatureTypeObj is the schema shared by a collection of features.
type FeatureTypeObj struct {
	Name       string
	Attributes []AttributeDescriptor
}

func (*FeatureTypeObj) Type() ObjectType { return TypeFeatureType }
func (*FeatureTypeObj) isObject()        {}

// AttributeIndex returns the position of the named attribute, or -1.
func (ft *FeatureTypeObj) AttributeIndex(name string) int {
	for i, a := range ft.Attributes {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// CommitObj represents a commit pointing to a tree with metadata.
type CommitObj struct {
	TreeHash           Hash
	Parents            []Hash
	Author             string
	AuthorTimestamp    int64
	AuthorTimezone     string
	Committer          string
	CommitterTimestamp int64
	CommitterTimezone  string
	Message            string
}

func (*CommitObj) Type() ObjectType { return TypeCommit }
func (*CommitObj) isObject()        {}

// TagObj is an annotated tag pointing at a commit.
type TagObj struct {
	TargetHash Hash
	Name       string
	Tagger     string
	Timestamp  int64
	Message    string
}

func (*TagObj) Type() ObjectType { return TypeTag }
func (*TagObj) isObject()        {}
