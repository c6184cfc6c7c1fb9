package repo

import (
	"context"
	"fmt"

	"github.com/odvcencio/geogot/pkg/object"
)

// PruneSummary reports what Prune removed.
type PruneSummary struct {
	Roots          int
	Reachable      int
	Deleted        int
	DeletedCommits int
}

// Prune deletes every object not reachable from a ref. When commits go,
// the revision graph is rebuilt from the commits that remain.
func (r *Repo) Prune(ctx context.Context) (*PruneSummary, error) {
	refs, err := r.ListRefs("")
	if err != nil {
		return nil, fmt.Errorf("prune: %w", err)
	}

	roots := make([]object.Hash, 0, len(refs))
	for _, h := range refs {
		roots = append(roots, h)
	}
	reachable, err := r.Store.ReachableSet(ctx, roots)
	if err != nil {
		return nil, fmt.Errorf("prune: %w", err)
	}

	commits := make(map[object.Hash]struct{})
	if err := r.Store.Iterate(object.TypeCommit, func(h object.Hash) error {
		commits[h] = struct{}{}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("prune: %w", err)
	}
	var doomed []object.Hash
	if err := r.Store.Iterate("", func(h object.Hash) error {
		if _, ok := reachable[h]; !ok {
			doomed = append(doomed, h)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("prune: %w", err)
	}

	sum := &PruneSummary{Roots: len(refs), Reachable: len(reachable)}
	for _, h := range doomed {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if err := r.Store.Delete(h); err != nil && !object.IsNotFound(err) {
			return sum, fmt.Errorf("prune: %w", err)
		}
		sum.Deleted++
		if _, ok := commits[h]; ok {
			sum.DeletedCommits++
		}
	}

	if sum.DeletedCommits > 0 {
		if err := r.Graph.Truncate(); err != nil {
			return sum, fmt.Errorf("prune: %w", err)
		}
		if _, err := r.RebuildGraph(ctx); err != nil {
			return sum, fmt.Errorf("prune: %w", err)
		}
	}
	r.logger.Info("pruned",
		"roots", sum.Roots,
		"reachable", sum.Reachable,
		"deleted", sum.Deleted,
		"deleted_commits", sum.DeletedCommits,
	)
	return sum, nil
}

// RebuildGraph repairs the revision graph from the stored commits and
// returns the commits it re-indexed.
func (r *Repo) RebuildGraph(ctx context.Context) ([]object.Hash, error) {
	fixed, err := r.Graph.Rebuild(ctx, r.Store)
	if err != nil {
		return fixed, fmt.Errorf("rebuild graph: %w", err)
	}
	if err := r.flagSparse(); err != nil {
		return fixed, fmt.Errorf("rebuild graph: %w", err)
	}
	return fixed, nil
}
