package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/odvcencio/geogot/pkg/graph"
	"github.com/odvcencio/geogot/pkg/merge"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/storage/badgerdb"
)

// DirName is the repository directory created at the root.
const DirName = ".geogot"

// Repo represents an opened geogot repository.
type Repo struct {
	RootDir string        // directory holding .geogot/
	Dir     string        // .geogot/ directory
	Config  *Config       // settings read at open
	Store   *object.Store // content-addressed object store
	Graph   *graph.Graph  // commit ancestry index

	logger       *slog.Logger
	mergeMetrics *merge.Metrics
	db           *badger.DB
}

type options struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	config     *Config
}

// Option configures Init and Open.
type Option func(*options)

// WithLogger sets the logger used by the repository and its components.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithRegisterer registers store and merge metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithConfig sets the configuration Init writes. Open ignores it.
func WithConfig(cfg *Config) Option { return func(o *options) { o.config = cfg } }

func collectOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// open wires the store and graph selected by cfg.
func open(root, dir string, cfg *Config, o options) (*Repo, error) {
	r := &Repo{
		RootDir:      root,
		Dir:          dir,
		Config:       cfg,
		logger:       o.logger,
		mergeMetrics: merge.NewMetrics(o.registerer),
	}

	if cfg.Storage.Backend == BackendBadger || cfg.Graph.Backend == BackendBadger {
		db, err := badgerdb.Open(badgerdb.Config{
			Path:       filepath.Join(dir, "badger"),
			SyncWrites: cfg.Storage.SyncWrites,
			Logger:     o.logger.With("component", "badger"),
		})
		if err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
		r.db = db
	}

	var backend object.Backend
	switch cfg.Storage.Backend {
	case BackendBadger:
		backend = object.NewBadgerBackend(r.db)
	case BackendMemory:
		backend = object.NewMemoryBackend()
	default:
		backend = object.NewLooseBackend(filepath.Join(dir, "objects"), cfg.Storage.Compress)
	}
	store, err := object.NewStoreWithBackend(backend, object.Options{
		CacheSize: cfg.Storage.CacheSize,
		Metrics:   object.NewMetrics(o.registerer),
	})
	if err != nil {
		r.closeDB()
		return nil, fmt.Errorf("open: %w", err)
	}
	r.Store = store

	var gb graph.Backend = graph.NewMemoryBackend()
	if cfg.Graph.Backend == BackendBadger {
		gb = graph.NewBadgerBackend(r.db)
	}
	r.Graph = graph.New(gb, graph.Options{
		MaxSteps: cfg.Graph.MaxSteps,
		MaxDepth: cfg.Graph.MaxDepth,
		Logger:   o.logger.With("component", "graph"),
	})
	if cfg.Graph.Backend == BackendMemory {
		if _, err := r.Graph.Rebuild(context.Background(), store); err != nil {
			r.Close()
			return nil, fmt.Errorf("open: %w", err)
		}
		if err := r.flagSparse(); err != nil {
			r.Close()
			return nil, fmt.Errorf("open: %w", err)
		}
	}
	return r, nil
}

// Close releases the store, the graph and the database behind them.
func (r *Repo) Close() error {
	var errs []error
	if r.Store != nil {
		errs = append(errs, r.Store.Close())
	}
	if r.Graph != nil {
		errs = append(errs, r.Graph.Close())
	}
	errs = append(errs, r.closeDB())
	return errors.Join(errs...)
}

func (r *Repo) closeDB() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// Logger returns the repository logger.
func (r *Repo) Logger() *slog.Logger { return r.logger }
