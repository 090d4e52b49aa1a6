// Package config reads and writes the TOML configuration file that
// locates the shared mount, names this machine, and lists tracked
// projects.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the top-level netsync configuration.
type Config struct {
	MachineName string                   `toml:"machine_name"`
	NASPath     string                   `toml:"nas_path"`
	LogDir      string                   `toml:"log_dir"`
	Projects    map[string]ProjectConfig `toml:"projects"`
	Encryption  EncryptionConfig         `toml:"encryption"`
	Concurrency ConcurrencyConfig        `toml:"concurrency"`
}

// ProjectConfig records where a tracked project lives on this machine
// and, optionally, the include patterns for selective sync.
type ProjectConfig struct {
	LocalPath string   `toml:"local_path"`
	Include   []string `toml:"include,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for at-rest
// blob encryption. Type "" (the default) behaves as "age"; encryption
// is active only once the key pair exists.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age", "test", or "" (same as "age")
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// ConcurrencyConfig bounds parallel scan/transfer work.
type ConcurrencyConfig struct {
	Scan     int64 `toml:"scan"`
	Transfer int64 `toml:"transfer"`
}

// NewConfig creates a Config with default key paths rooted at baseDir.
func NewConfig(machineName, nasPath, baseDir string) *Config {
	return &Config{
		MachineName: machineName,
		NASPath:     nasPath,
		LogDir:      filepath.Join(baseDir, "log"),
		Projects:    map[string]ProjectConfig{},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "netsync.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "netsync.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Projects == nil {
		cfg.Projects = map[string]ProjectConfig{}
	}
	return &cfg, nil
}

func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

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

// Init writes a brand new config file, refusing to overwrite one that
// already exists.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

// Save overwrites an existing config file, used by `project create|rm`
// to persist changes to the projects map.
func Save(path string, cfg *Config) error {
	return writeToFile(path, cfg)
}
