package object

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of decoded objects kept in memory.
const DefaultCacheSize = 4096

// Store is a content-addressed object store. Objects are immutable once
// written, so decoded objects are cached and shared between callers;
// callers must not modify objects returned by Get or the Read* helpers.
type Store struct {
	backend Backend
	cache   *lru.Cache[Hash, Object]
	metrics *Metrics
}

// Options configures a Store.
type Options struct {
	// CacheSize bounds the decoded-object cache. Zero or negative disables
	// caching.
	CacheSize int
	Metrics   *Metrics
}

// NewStore creates a Store over compressed loose files rooted at the given
// directory, with the default cache.
func NewStore(root string) *Store {
	s, err := NewStoreWithBackend(NewLooseBackend(root, true), Options{CacheSize: DefaultCacheSize})
	if err != nil {
		// lru.New only fails for non-positive sizes.
		panic(err)
	}
	return s
}

// NewStoreWithBackend creates a Store over an arbitrary backend.
func NewStoreWithBackend(backend Backend, opts Options) (*Store, error) {
	s := &Store{backend: backend, metrics: opts.Metrics}
	if opts.CacheSize > 0 {
		cache, err := lru.New[Hash, Object](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("object store cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// NewMemoryStore returns a cached Store over a fresh MemoryBackend.
func NewMemoryStore() *Store {
	s, err := NewStoreWithBackend(NewMemoryBackend(), Options{CacheSize: DefaultCacheSize})
	if err != nil {
		panic(err)
	}
	return s
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend { return s.backend }

// Close releases backend resources.
func (s *Store) Close() error {
	if s.cache != nil {
		s.cache.Purge()
	}
	return s.backend.Close()
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) (bool, error) {
	if s.cache != nil && s.cache.Contains(h) {
		return true, nil
	}
	return s.backend.Has(h)
}

// Write stores raw canonical bytes of the given type and returns their
// content hash. Re-writing identical content is a no-op.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	if !objType.Valid() {
		return "", fmt.Errorf("object write: unknown type %q", objType)
	}
	h := HashObject(objType, data)

	// Fast path: already exists.
	if ok, err := s.Has(h); err != nil {
		return "", err
	} else if ok {
		s.metrics.incDedupHits()
		return h, nil
	}
	if err := s.backend.Write(h, objType, data); err != nil {
		return "", err
	}
	s.metrics.incWrites()
	return h, nil
}

// Read retrieves an object by hash, returning its type and raw content.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	s.metrics.incReads()
	return s.backend.Read(h)
}

// Put stores obj and returns its id. It is idempotent and safe to call
// concurrently with identical content.
func (s *Store) Put(obj Object) (Hash, error) {
	if tr, ok := obj.(*TreeObj); ok {
		if err := CheckCanonical(tr); err != nil {
			return "", fmt.Errorf("object put: %w", err)
		}
	}
	data, err := Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("object put: %w", err)
	}
	h, err := s.Write(obj.Type(), data)
	if err != nil {
		return "", err
	}
	if s.cache != nil {
		// Cache a decoded copy: the caller keeps ownership of obj.
		cp, err := Unmarshal(obj.Type(), data)
		if err != nil {
			return "", fmt.Errorf("object put %s: %w", h, err)
		}
		s.cache.Add(h, cp)
	}
	return h, nil
}

// Get returns the object with id h. It fails with ErrNotFound when the
// object is absent and ErrTypeMismatch when it is not of the expected type.
func (s *Store) Get(h Hash, expected ObjectType) (Object, error) {
	if s.cache != nil {
		if obj, ok := s.cache.Get(h); ok {
			s.metrics.incCacheHits()
			if obj.Type() != expected {
				return nil, typeMismatch(h, obj.Type(), expected)
			}
			return obj, nil
		}
	}

	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != expected {
		return nil, typeMismatch(h, objType, expected)
	}
	obj, err := Unmarshal(objType, data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	if s.cache != nil {
		s.cache.Add(h, obj)
	}
	return obj, nil
}

// Delete removes an object. It exists for explicit pruning only; object
// history is otherwise append-only.
func (s *Store) Delete(h Hash) error {
	if s.cache != nil {
		s.cache.Remove(h)
	}
	if err := s.backend.Delete(h); err != nil {
		return err
	}
	s.metrics.incDeletes()
	return nil
}

// Iterate calls fn for every stored object of type objType, or for every
// object when objType is empty.
func (s *Store) Iterate(objType ObjectType, fn func(h Hash) error) error {
	return s.backend.Iterate(func(h Hash, t ObjectType) error {
		if objType != "" && t != objType {
			return nil
		}
		return fn(h)
	})
}

func typeMismatch(h Hash, got, want ObjectType) error {
	return fmt.Errorf("object %s: %w: got %q, want %q", h, ErrTypeMismatch, got, want)
}

// IsNotFound reports whether err means an object was absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteTree stores a TreeObj.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) { return s.Put(tr) }

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	if h == EmptyTreeHash {
		return &TreeObj{}, nil
	}
	obj, err := s.Get(h, TypeTree)
	if err != nil {
		return nil, err
	}
	return obj.(*TreeObj), nil
}

// WriteFeature stores a FeatureObj.
func (s *Store) WriteFeature(f *FeatureObj) (Hash, error) { return s.Put(f) }

// ReadFeature reads and deserializes a FeatureObj.
func (s *Store) ReadFeature(h Hash) (*FeatureObj, error) {
	obj, err := s.Get(h, TypeFeature)
	if err != nil {
		return nil, err
	}
	return obj.(*FeatureObj), nil
}

// WriteFeatureType stores a FeatureTypeObj.
func (s *Store) WriteFeatureType(ft *FeatureTypeObj) (Hash, error) { return s.Put(ft) }

// ReadFeatureType reads and deserializes a FeatureTypeObj.
func (s *Store) ReadFeatureType(h Hash) (*FeatureTypeObj, error) {
	obj, err := s.Get(h, TypeFeatureType)
	if err != nil {
		return nil, err
	}
	return obj.(*FeatureTypeObj), nil
}

// WriteCommit stores a CommitObj.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) { return s.Put(c) }

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	obj, err := s.Get(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	return obj.(*CommitObj), nil
}

// WriteTag stores a TagObj.
func (s *Store) WriteTag(t *TagObj) (Hash, error) { return s.Put(t) }

// ReadTag reads and deserializes a TagObj.
func (s *Store) ReadTag(h Hash) (*TagObj, error) {
	obj, err := s.Get(h, TypeTag)
	if err != nil {
		return nil, err
	}
	return obj.(*TagObj), nil
}
