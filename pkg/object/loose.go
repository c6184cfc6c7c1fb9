package object

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic prefixes every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// LooseBackend stores one file per object with a 2-character fan-out
// directory layout: objects/ab/cdef0123...
//
// Files hold the envelope "type len\0content", optionally zstd-compressed.
// Reads accept both forms so compression can be toggled on an existing
// store.
type LooseBackend struct {
	root     string
	compress bool

	codecOnce sync.Once
	enc       *zstd.Encoder
	dec       *zstd.Decoder
	codecErr  error
}

// NewLooseBackend creates a backend rooted at the given directory. The
// objects/ subdirectory is created lazily on first write.
func NewLooseBackend(root string, compress bool) *LooseBackend {
	return &LooseBackend{root: root, compress: compress}
}

func (s *LooseBackend) codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	s.codecOnce.Do(func() {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			s.codecErr = fmt.Errorf("zstd encoder: %w", err)
			return
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			enc.Close()
			s.codecErr = fmt.Errorf("zstd decoder: %w", err)
			return
		}
		s.enc, s.dec = enc, dec
	})
	return s.enc, s.dec, s.codecErr
}

// objectPath returns the filesystem path for a given hash.
func (s *LooseBackend) objectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

func (s *LooseBackend) Has(h Hash) (bool, error) {
	if len(h) < 3 {
		return false, nil
	}
	_, err := os.Stat(s.objectPath(h))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("object stat %s: %w", h, err)
}

// Write stores an object envelope. Writes are atomic and durable: data is
// written to a temp file, synced, and then renamed into place.
func (s *LooseBackend) Write(h Hash, objType ObjectType, data []byte) error {
	if err := h.Validate(); err != nil {
		return fmt.Errorf("object write: %w", err)
	}
	if ok, err := s.Has(h); err != nil {
		return err
	} else if ok {
		return nil
	}

	raw := makeObjectEnvelope(objType, data)
	if s.compress {
		enc, _, err := s.codecs()
		if err != nil {
			return fmt.Errorf("object write: %w", err)
		}
		raw = enc.EncodeAll(raw, nil)
	}

	dir := filepath.Join(s.root, "objects", string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("object write mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("object write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("object write sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("object write close: %w", err)
	}

	if err := os.Rename(tmpName, s.objectPath(h)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("object write rename: %w", err)
	}
	return nil
}

// Read retrieves an object by hash, returning its type and raw content.
func (s *LooseBackend) Read(h Hash) (ObjectType, []byte, error) {
	if len(h) < 3 {
		return "", nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
	}
	raw, err := os.ReadFile(s.objectPath(h))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
		}
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	objType, content, err := s.parse(raw)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	return objType, content, nil
}

func (s *LooseBackend) parse(raw []byte) (ObjectType, []byte, error) {
	if bytes.HasPrefix(raw, zstdMagic) {
		_, dec, err := s.codecs()
		if err != nil {
			return "", nil, err
		}
		raw, err = dec.DecodeAll(raw, nil)
		if err != nil {
			return "", nil, fmt.Errorf("decompress: %w", err)
		}
	}
	return parseObjectEnvelope(raw)
}

func (s *LooseBackend) Delete(h Hash) error {
	if len(h) < 3 {
		return fmt.Errorf("object delete %s: %w", h, ErrNotFound)
	}
	if err := os.Remove(s.objectPath(h)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("object delete %s: %w", h, ErrNotFound)
		}
		return fmt.Errorf("object delete %s: %w", h, err)
	}
	return nil
}

// Iterate walks the fan-out directories in hash order. Temp files left by
// interrupted writes are skipped.
func (s *LooseBackend) Iterate(fn func(h Hash, objType ObjectType) error) error {
	objectsDir := filepath.Join(s.root, "objects")
	fanouts, err := os.ReadDir(objectsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("object iterate: %w", err)
	}
	sort.Slice(fanouts, func(i, j int) bool { return fanouts[i].Name() < fanouts[j].Name() })

	for _, fanout := range fanouts {
		if !fanout.IsDir() || len(fanout.Name()) != 2 {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(objectsDir, fanout.Name()))
		if err != nil {
			return fmt.Errorf("object iterate: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".tmp-") {
				continue
			}
			h := Hash(fanout.Name() + e.Name())
			if h.Validate() != nil {
				continue
			}
			objType, _, err := s.Read(h)
			if err != nil {
				return fmt.Errorf("object iterate: %w", err)
			}
			if err := fn(h, objType); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *LooseBackend) Close() error {
	if s.enc != nil {
		s.enc.Close()
	}
	if s.dec != nil {
		s.dec.Close()
	}
	return nil
}

func makeObjectEnvelope(objType ObjectType, data []byte) []byte {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	raw := make([]byte, 0, len(header)+len(data))
	raw = append(raw, header...)
	return append(raw, data...)
}

// parseObjectEnvelope splits "type len\0content" into its parts.
func parseObjectEnvelope(raw []byte) (ObjectType, []byte, error) {
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("invalid format (no NUL)")
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("invalid header %q", header)
	}
	objType := ObjectType(parts[0])
	length, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("invalid length %q: %w", parts[1], err)
	}
	if len(content) != length {
		return "", nil, fmt.Errorf("length mismatch (header=%d, actual=%d)", length, len(content))
	}
	return objType, content, nil
}
