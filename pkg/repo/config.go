package repo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/odvcencio/geogot/pkg/object"
)

// Backend names accepted in the configuration.
const (
	BackendLoose  = "loose"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Config stores repository-local settings.
type Config struct {
	Storage StorageConfig `toml:"storage"`
	Graph   GraphConfig   `toml:"graph"`
	Core    CoreConfig    `toml:"core"`
}

// StorageConfig selects and tunes the object store.
type StorageConfig struct {
	Backend    string `toml:"backend"`
	Compress   bool   `toml:"compress"`
	CacheSize  int    `toml:"cache_size"`
	SyncWrites bool   `toml:"sync_writes"`
}

// GraphConfig selects the revision graph backend and its traversal
// limits. A memory graph is rebuilt from the stored commits on open.
type GraphConfig struct {
	Backend  string `toml:"backend"`
	MaxSteps int    `toml:"max_steps,omitempty"`
	MaxDepth int    `toml:"max_depth,omitempty"`
}

// CoreConfig holds commit defaults.
type CoreConfig struct {
	Author string `toml:"author,omitempty"`
}

// DefaultConfig returns the settings of a new repository.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:    BackendLoose,
			Compress:   true,
			CacheSize:  object.DefaultCacheSize,
			SyncWrites: true,
		},
		Graph: GraphConfig{Backend: BackendBadger},
	}
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendLoose, BackendBadger, BackendMemory:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Graph.Backend {
	case BackendBadger, BackendMemory:
	default:
		return fmt.Errorf("config: unknown graph backend %q", c.Graph.Backend)
	}
	return nil
}

func configPath(dir string) string {
	return filepath.Join(dir, "config.toml")
}

// ReadConfig reads config.toml from a repository directory. Missing keys,
// or a missing file, keep their defaults.
func ReadConfig(dir string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(configPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("read config: decode: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteConfig atomically writes config.toml into a repository directory.
func WriteConfig(dir string, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, configPath(dir)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}
