package graph

import (
	"context"
	"fmt"
	"slices"

	"github.com/odvcencio/geogot/pkg/object"
)

// Rebuild repairs the graph from the commits in store. Every commit whose
// record is missing or disagrees with the stored parents is re-indexed,
// and so are its ancestors until a correctly indexed commit or a root is
// reached. Correct records are left alone. It returns the ids it fixed.
//
// Inconsistencies are what Rebuild exists for, so only storage failures
// are errors. Rebuild must not run concurrently with PutParents.
func (g *Graph) Rebuild(ctx context.Context, store *object.Store) ([]object.Hash, error) {
	var commits []object.Hash
	if err := store.Iterate(object.TypeCommit, func(h object.Hash) error {
		commits = append(commits, h)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("graph rebuild: list commits: %w", err)
	}

	var fixed []object.Hash
	checked := make(map[object.Hash]struct{}, len(commits))
	missing := 0
	for _, start := range commits {
		stack := []object.Hash{start}
		for len(stack) > 0 {
			if err := ctx.Err(); err != nil {
				return fixed, err
			}
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if _, ok := checked[id]; ok {
				continue
			}
			checked[id] = struct{}{}

			commit, err := store.ReadCommit(id)
			if object.IsNotFound(err) {
				// A parent outside the local history; nothing to index.
				missing++
				continue
			}
			if err != nil {
				return fixed, fmt.Errorf("graph rebuild: %w", err)
			}
			rec, _, err := g.backend.Get(id)
			if err != nil {
				return fixed, fmt.Errorf("graph rebuild: %w", err)
			}
			if rec.Indexed && slices.Equal(rec.Parents, commit.Parents) {
				continue
			}
			if _, err := g.PutParents(id, commit.Parents); err != nil {
				return fixed, fmt.Errorf("graph rebuild: %w", err)
			}
			fixed = append(fixed, id)
			stack = append(stack, commit.Parents...)
		}
	}

	g.logger.Info("graph rebuilt",
		"commits", len(commits),
		"fixed", len(fixed),
		"missing_parents", missing,
	)
	return fixed, nil
}
