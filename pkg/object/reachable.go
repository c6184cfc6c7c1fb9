package object

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// ReachableSet returns the ids of every object reachable from roots:
// commits lead to their tree and parents, trees to their children,
// buckets and feature types, tags to their target. Ids that are not
// stored are skipped, so sparse histories can be walked.
func (s *Store) ReachableSet(ctx context.Context, roots []Hash) (map[Hash]struct{}, error) {
	seen := make(map[Hash]struct{}, len(roots))
	stack := normalizeRoots(roots)
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[h]; ok {
			continue
		}
		objType, data, err := s.Read(h)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reachable %s: %w", h.Short(), err)
		}
		seen[h] = struct{}{}

		obj, err := Unmarshal(objType, data)
		if err != nil {
			return nil, fmt.Errorf("reachable %s (%s): %w", h.Short(), objType, err)
		}
		stack = appendReferences(stack, obj)
	}
	return seen, nil
}

// appendReferences appends the ids obj points at.
func appendReferences(dst []Hash, obj Object) []Hash {
	switch o := obj.(type) {
	case *CommitObj:
		dst = append(dst, o.TreeHash)
		return append(dst, o.Parents...)
	case *TreeObj:
		for _, n := range o.Nodes {
			dst = append(dst, n.ObjectID)
			if n.MetadataID != "" {
				dst = append(dst, n.MetadataID)
			}
		}
		for _, b := range o.Buckets {
			dst = append(dst, b.TreeID)
		}
		return dst
	case *TagObj:
		return append(dst, o.TargetHash)
	case *FeatureObj, *FeatureTypeObj:
		return dst
	}
	return dst
}

func normalizeRoots(in []Hash) []Hash {
	out := make([]Hash, 0, len(in))
	for _, h := range in {
		if h = Hash(strings.TrimSpace(string(h))); h != "" {
			out = append(out, h)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
