package tree

import (
	"hash/fnv"

	"github.com/odvcencio/geogot/pkg/object"
)

// Normalization constants. They are part of the id space: changing any of
// them changes the id of every tree larger than MaxNodes.
const (
	// MaxNodes is the largest number of direct children a tree keeps
	// before it is split into buckets.
	MaxNodes = 512
	// BucketsPerLevel is the number of buckets a split tree distributes
	// its children over.
	BucketsPerLevel = 32
	// MaxDepth bounds bucket nesting. At this depth children stay direct
	// whatever their count.
	MaxDepth = 8
)

// BucketIndex returns the bucket a child named name falls into at the
// given bucket depth: byte depth of the big-endian FNV-1a 64 hash of the
// name, modulo BucketsPerLevel.
func BucketIndex(name string, depth int) int {
	h := fnv.New64a()
	h.Write([]byte(name))
	sum := h.Sum64()
	shift := uint(7-depth%8) * 8
	return int(byte(sum>>shift)) % BucketsPerLevel
}

// splitsAt reports whether a tree with count direct children at the given
// bucket depth is stored as buckets.
func splitsAt(count, depth int) bool {
	return count > MaxNodes && depth < MaxDepth
}

// extentOf returns the union of the extents of tr's children.
func extentOf(tr *object.TreeObj) *object.Envelope {
	var env *object.Envelope
	for _, n := range tr.Nodes {
		env = env.Expand(n.Extent)
	}
	for _, b := range tr.Buckets {
		env = env.Expand(b.Extent)
	}
	return env
}
