package repo

import (
	"fmt"
	"os"
	"path/filepath"
)

// Init creates a new repository at path. It creates the .geogot/ directory
// with objects/, refs/heads/ and config.toml, and returns an error if
// .geogot/ already exists.
func Init(path string, opts ...Option) (*Repo, error) {
	o := collectOptions(opts)
	dir := filepath.Join(path, DirName)

	// Fail if .geogot/ already exists.
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", dir)
	}

	for _, d := range []string{
		filepath.Join(dir, "objects"),
		filepath.Join(dir, "refs", "heads"),
	} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	cfg := o.config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := WriteConfig(dir, cfg); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return open(path, dir, cfg, o)
}

// Open searches upward from path for a .geogot/ directory and opens the
// repository. Returns an error if no .geogot/ directory is found.
func Open(path string, opts ...Option) (*Repo, error) {
	o := collectOptions(opts)
	// Resolve to absolute path for consistent traversal.
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		dir := filepath.Join(cur, DirName)
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			cfg, err := ReadConfig(dir)
			if err != nil {
				return nil, fmt.Errorf("open: %w", err)
			}
			return open(cur, dir, cfg, o)
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			// Reached filesystem root without finding .geogot/.
			return nil, fmt.Errorf("open: not a geogot repository (or any parent up to /)")
		}
		cur = parent
	}
}
