package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// EmptyTreeHash is the id of the tree with no children.
var EmptyTreeHash = HashObject(TypeTree, nil)

// HashBytes computes the raw SHA-256 hash of data and returns it as a
// lowercase hex-encoded Hash.
func HashBytes(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashObject computes the SHA-256 of the envelope "type len\0content".
func HashObject(objType ObjectType, data []byte) Hash {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	h := sha256.New()
	h.Write([]byte(header))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// HashOf computes the id obj would receive when stored, without storing it.
func HashOf(obj Object) (Hash, error) {
	data, err := Marshal(obj)
	if err != nil {
		return "", err
	}
	return HashObject(obj.Type(), data), nil
}

// Short returns the first 8 characters of h for display.
func (h Hash) Short() string {
	if len(h) > 8 {
		return string(h[:8])
	}
	return string(h)
}

// Validate checks that h is a well-formed 64-character hex digest.
func (h Hash) Validate() error {
	if len(h) != sha256.Size*2 {
		return fmt.Errorf("invalid object id %q: want %d hex characters", h, sha256.Size*2)
	}
	if _, err := hex.DecodeString(string(h)); err != nil {
		return fmt.Errorf("invalid object id %q: %w", h, err)
	}
	return nil
}
