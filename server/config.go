package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the remoteopsd.toml configuration.
type Config struct {
	// Listen is the address the HTTP executor binds to.
	Listen string `toml:"listen"`

	// MaxInstructions bounds one program's execution. 0 uses the
	// interpreter default.
	MaxInstructions uint64 `toml:"max-instructions"`

	// DeniedCapabilities are removed from the advertised manifest; programs
	// needing them are rejected by their own insertion checks client-side.
	DeniedCapabilities []string `toml:"denied-capabilities"`

	// ObjectTTLSeconds is how long an unused registered object survives
	// before the sweeper releases it. 0 disables sweeping.
	ObjectTTLSeconds int `toml:"object-ttl-seconds"`

	// Dir is the directory containing the remoteopsd.toml file (set at
	// load time).
	Dir string `toml:"-"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Listen:           ":7317",
		ObjectTTLSeconds: 300,
	}
}

// LoadConfig parses remoteopsd.toml from the given directory. A missing
// file yields the defaults.
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, "remoteopsd.toml")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	cfg.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if cfg.Listen == "" {
		return nil, fmt.Errorf("%s: listen address must not be empty", path)
	}
	return cfg, nil
}
