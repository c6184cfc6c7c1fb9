package object

import "errors"

var (
	// ErrNotFound indicates the requested object is absent from the store.
	ErrNotFound = errors.New("object not found")
	// ErrTypeMismatch indicates the stored object is a different variant
	// than the one requested.
	ErrTypeMismatch = errors.New("object type mismatch")
	// ErrMalformedTree indicates a stored tree violates the canonical-form
	// invariants. It is data corruption and is never repaired silently.
	ErrMalformedTree = errors.New("malformed tree")
)
