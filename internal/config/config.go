package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the terminal client's configuration. The store directory is
// the shared contract with the primary editing process: both must point
// at the same directory for the mirror to work.
type Config struct {
	StoreDir   string `toml:"store_dir"`
	LogDir     string `toml:"log_dir"`
	Editor     string `toml:"editor"`      // editor invocation, e.g. "vim" or "code -w"
	DebounceMS int    `toml:"debounce_ms"` // sync quiet period; 0 means the default
}

// Debounce returns the configured quiet period.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// NewConfig creates a Config with defaults rooted at the given store
// directory. The editor falls back to $EDITOR, then vim.
func NewConfig(storeDir string) *Config {
	ed := os.Getenv("EDITOR")
	if ed == "" {
		ed = "vim"
	}
	return &Config{
		StoreDir: storeDir,
		LogDir:   filepath.Join(storeDir, "log"),
		Editor:   ed,
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path. A missing
// file is not an error: the client runs fine on defaults, so the zero
// path yields NewConfig rooted at the default store dir.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			storeDir, derr := DefaultStoreDir()
			if derr != nil {
				return nil, derr
			}
			return NewConfig(storeDir), nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if cfg.StoreDir == "" {
		return nil, fmt.Errorf("config %s: store_dir is required", path)
	}
	if cfg.Editor == "" {
		cfg.Editor = NewConfig(cfg.StoreDir).Editor
	}
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.StoreDir, "log")
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the
// provided Config. Refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

// DefaultConfigPath returns the config file location, checking
// QUILL_CONFIG_PATH first, then ~/.config/quill.toml.
func DefaultConfigPath() (string, error) {
	if path := os.Getenv("QUILL_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "quill.toml"), nil
}

// DefaultStoreDir returns the store root, checking QUILL_HOME first, then
// ~/.quill. This must match wherever the primary process mirrors to.
func DefaultStoreDir() (string, error) {
	if path := os.Getenv("QUILL_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".quill"), nil
}
