package repo

import (
	"fmt"
	"strings"
	"time"

	"github.com/odvcencio/geogot/pkg/object"
)

const defaultAuthor = "geogot"

// WriteCommit stores c and indexes it in the revision graph. A commit with
// a parent missing from the store is flagged sparse.
func (r *Repo) WriteCommit(c *object.CommitObj) (object.Hash, error) {
	if _, err := r.Store.ReadTree(c.TreeHash); err != nil {
		return "", fmt.Errorf("write commit: tree %s: %w", c.TreeHash.Short(), err)
	}
	id, err := r.Store.WriteCommit(c)
	if err != nil {
		return "", fmt.Errorf("write commit: %w", err)
	}
	if _, err := r.Graph.PutParents(id, c.Parents); err != nil {
		return "", fmt.Errorf("write commit %s: %w", id.Short(), err)
	}
	for _, p := range c.Parents {
		ok, err := r.Store.Has(p)
		if err != nil {
			return "", fmt.Errorf("write commit %s: %w", id.Short(), err)
		}
		if !ok {
			if err := r.Graph.SetSparse(id); err != nil {
				return "", fmt.Errorf("write commit %s: %w", id.Short(), err)
			}
			r.logger.Warn("commit parent not stored, marked sparse", "commit", id.Short(), "parent", p.Short())
			break
		}
	}
	return id, nil
}

// CommitTree writes a commit of treeID with the given parents, authored
// and committed now by the configured author.
func (r *Repo) CommitTree(treeID object.Hash, parents []object.Hash, message string) (object.Hash, error) {
	author := strings.TrimSpace(r.Config.Core.Author)
	if author == "" {
		author = defaultAuthor
	}
	now := time.Now()
	tz := now.Format("-0700")
	return r.WriteCommit(&object.CommitObj{
		TreeHash:           treeID,
		Parents:            parents,
		Author:             author,
		AuthorTimestamp:    now.Unix(),
		AuthorTimezone:     tz,
		Committer:          author,
		CommitterTimestamp: now.Unix(),
		CommitterTimezone:  tz,
		Message:            message,
	})
}

// LogEntry is one commit of a first-parent walk.
type LogEntry struct {
	ID     object.Hash
	Commit *object.CommitObj
	Sparse bool
}

// Log walks first parents from start, newest first, returning at most
// limit commits when limit is positive. The walk ends quietly at a
// parent that is not stored.
func (r *Repo) Log(start object.Hash, limit int) ([]LogEntry, error) {
	var out []LogEntry
	for id := start; id != "" && (limit <= 0 || len(out) < limit); {
		c, err := r.Store.ReadCommit(id)
		if err != nil {
			if object.IsNotFound(err) && len(out) > 0 {
				break
			}
			return out, fmt.Errorf("log: %w", err)
		}
		sparse, err := r.Graph.IsSparse(id)
		if err != nil {
			return out, fmt.Errorf("log: %w", err)
		}
		out = append(out, LogEntry{ID: id, Commit: c, Sparse: sparse})
		id = ""
		if len(c.Parents) > 0 {
			id = c.Parents[0]
		}
	}
	return out, nil
}

// flagSparse marks every stored commit with a parent outside the store.
// A rebuilt graph knows parents but not which of them were never fetched.
func (r *Repo) flagSparse() error {
	return r.Store.Iterate(object.TypeCommit, func(id object.Hash) error {
		c, err := r.Store.ReadCommit(id)
		if err != nil {
			return err
		}
		for _, p := range c.Parents {
			ok, err := r.Store.Has(p)
			if err != nil {
				return err
			}
			if !ok {
				return r.Graph.SetSparse(id)
			}
		}
		return nil
	})
}
