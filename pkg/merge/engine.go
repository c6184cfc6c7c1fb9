// Package merge classifies the changes two commits made since their common
// ancestor into conflicts, clean changes and attribute-level merges.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/geogot/pkg/diff"
	"github.com/odvcencio/geogot/pkg/graph"
	"github.com/odvcencio/geogot/pkg/object"
)

// ErrNoCommonAncestor is returned when no ancestor is given and the two
// commits share no history.
var ErrNoCommonAncestor = errors.New("no common ancestor")

const defaultBuffer = 64

// Request names the commits of a merge scenario.
type Request struct {
	// Ancestor is the merge base. When empty it is found through the
	// revision graph.
	Ancestor object.Hash
	Ours     object.Hash
	Theirs   object.Hash
	// Paths restricts the scenario to entries at or below these paths.
	Paths []string
}

// Engine runs merge scenarios. It only reads from the store.
type Engine struct {
	store   *object.Store
	graph   *graph.Graph
	differ  *diff.Differ
	metrics *Metrics
	logger  *slog.Logger
	buffer  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records scenario results in m.
func WithMetrics(m *Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithLogger sets the logger for scenario summaries.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithBuffer sets how many diff entries each side may read ahead.
func WithBuffer(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.buffer = n
		}
	}
}

// NewEngine returns an Engine over store. g may be nil when every request
// names its ancestor.
func NewEngine(store *object.Store, g *graph.Graph, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		graph:  g,
		differ: diff.New(store),
		logger: slog.New(slog.DiscardHandler),
		buffer: defaultBuffer,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Scenario diffs the ancestor against ours and against theirs and reports
// every changed path to c, in diff order. Each path yields exactly one
// result, except that a path whose entry changed between feature and tree
// may yield one for each. Conflicts are results, not errors: Scenario only
// fails on storage errors, a missing merge base or cancellation, and then
// c.Finished is not called.
func (e *Engine) Scenario(ctx context.Context, req Request, c Consumer) error {
	start := time.Now()
	ancestor := req.Ancestor
	if ancestor == "" {
		if e.graph == nil {
			return fmt.Errorf("merge scenario: %w", ErrNoCommonAncestor)
		}
		base, ok, err := e.graph.MergeBase(req.Ours, req.Theirs)
		if err != nil {
			return fmt.Errorf("merge scenario: %w", err)
		}
		if !ok {
			return fmt.Errorf("merge scenario %s..%s: %w", req.Ours.Short(), req.Theirs.Short(), ErrNoCommonAncestor)
		}
		ancestor = base
	}

	ancTree, err := e.treeOf(ancestor)
	if err != nil {
		return err
	}
	oursTree, err := e.treeOf(req.Ours)
	if err != nil {
		return err
	}
	theirsTree, err := e.treeOf(req.Theirs)
	if err != nil {
		return err
	}

	var report Report
	out := Tee(c, &report)
	if e.metrics != nil {
		out = Tee(c, &report, e.metrics)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	oursS := &stream{ch: make(chan diff.Entry, e.buffer)}
	theirsS := &stream{ch: make(chan diff.Entry, e.buffer)}
	g.Go(func() error { return e.produce(gctx, ancTree, oursTree, req.Paths, oursS) })
	g.Go(func() error { return e.produce(gctx, ancTree, theirsTree, req.Paths, theirsS) })

	joinErr := e.join(gctx, oursS, theirsS, out)
	if joinErr != nil {
		cancel()
	}
	// The join stops at a failed stream; the producer's error is the one
	// to report.
	if err := g.Wait(); err != nil {
		return fmt.Errorf("merge scenario: %w", err)
	}
	if joinErr != nil {
		return fmt.Errorf("merge scenario: %w", joinErr)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("merge scenario: %w", err)
	}

	out.Finished()
	e.logger.Debug("merge scenario",
		"ancestor", ancestor.Short(),
		"ours", req.Ours.Short(),
		"theirs", req.Theirs.Short(),
		"conflicted", report.Counts.Conflicted,
		"unconflicted", report.Counts.Unconflicted,
		"merged", report.Counts.Merged,
		"elapsed", time.Since(start),
	)
	return nil
}

func (e *Engine) treeOf(commit object.Hash) (object.Hash, error) {
	c, err := e.store.ReadCommit(commit)
	if err != nil {
		return "", fmt.Errorf("merge scenario: commit %s: %w", commit.Short(), err)
	}
	return c.TreeHash, nil
}

// produce streams the diff from one tree to another into s. The stream's
// error is set before its channel is closed.
func (e *Engine) produce(ctx context.Context, from, to object.Hash, paths []string, s *stream) (err error) {
	defer func() {
		s.err = err
		close(s.ch)
	}()
	it := e.differ.Diff(ctx, from, to, diff.Options{Paths: paths, ReportTrees: true})
	defer it.Close()
	for it.Next() {
		select {
		case s.ch <- it.Entry():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return it.Err()
}

// stream is one side's diff with a single entry of lookahead. err is only
// read after ch is closed.
type stream struct {
	ch   chan diff.Entry
	err  error
	head diff.Entry
	ok   bool
	read bool
}

// peek returns the next entry without consuming it. ok is false at the
// end of the diff, and err is set if the diff ended early.
func (s *stream) peek() (diff.Entry, bool, error) {
	if !s.read {
		s.head, s.ok = <-s.ch
		s.read = true
	}
	if !s.ok && s.err != nil {
		return diff.Entry{}, false, s.err
	}
	return s.head, s.ok, nil
}

// take consumes every entry at path. A type change puts two entries at
// the same path.
func (s *stream) take(path string) ([]diff.Entry, error) {
	var out []diff.Entry
	for {
		e, ok, err := s.peek()
		if err != nil {
			return nil, err
		}
		if !ok || e.Path() != path {
			return out, nil
		}
		out = append(out, e)
		s.read = false
	}
}

// join walks both diffs in path order and classifies each path.
func (e *Engine) join(ctx context.Context, ours, theirs *stream, c Consumer) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		o, okO, err := ours.peek()
		if err != nil {
			return err
		}
		t, okT, err := theirs.peek()
		if err != nil {
			return err
		}
		var path string
		switch {
		case !okO && !okT:
			return nil
		case !okT:
			path = o.Path()
		case !okO:
			path = t.Path()
		case diff.ComparePaths(o.Path(), t.Path()) <= 0:
			path = o.Path()
		default:
			path = t.Path()
		}
		oe, err := ours.take(path)
		if err != nil {
			return err
		}
		te, err := theirs.take(path)
		if err != nil {
			return err
		}
		if err := e.classify(oe, te, c); err != nil {
			return err
		}
	}
}
