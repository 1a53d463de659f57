package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for pixsync.
type Config struct {
	BaseDir   string          `toml:"base_dir"`
	LogDir    string          `toml:"log_dir"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Remote    RemoteConfig    `toml:"remote"`
	Tagger    TaggerConfig    `toml:"tagger"`
	Transfer  TransferConfig  `toml:"transfer"`
	Reconcile ReconcileConfig `toml:"reconcile"`
	Accounts  []AccountConfig `toml:"accounts"`
}

// CatalogConfig configures the photo catalog store.
// This uses a tagged union pattern - the Type field determines which other
// fields are relevant.
type CatalogConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// RemoteConfig configures how remote store clients are built.
type RemoteConfig struct {
	Type string `toml:"type"` // "http" (default) or "memory"
}

// TaggerConfig configures the best-effort metadata tagger.
type TaggerConfig struct {
	Type string `toml:"type"` // "xmp", "nop" (default)
}

// TransferConfig holds upload pacing and layout defaults.
type TransferConfig struct {
	DelayMillis     int  `toml:"delay_millis"` // fixed delay between uploads
	OrganizeByAlbum bool `toml:"organize_by_album"`
	TagAlbums       bool `toml:"tag_albums"`
}

// ReconcileConfig holds album reconciliation defaults.
type ReconcileConfig struct {
	Concurrency int `toml:"concurrency"`  // Phase 1 lookup batch size
	ChunkSize   int `toml:"chunk_size"`   // Phase 2 add-to-album chunk size
	DelayMillis int `toml:"delay_millis"` // fixed delay between batches/chunks
}

// AccountConfig pairs a local archive export with a remote store account.
type AccountConfig struct {
	Name           string `toml:"name"`
	ArchiveRoot    string `toml:"archive_root"`
	RemoteURL      string `toml:"remote_url"`
	RemoteUser     string `toml:"remote_user"`
	RemotePassword string `toml:"remote_password,omitempty"` // prompted when empty
	RemoteFolder   string `toml:"remote_folder"`             // upload destination
}

// NewConfig creates a Config with the provided base directory and defaults.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Catalog: CatalogConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "catalog"),
		},
		Remote:    RemoteConfig{Type: "http"},
		Tagger:    TaggerConfig{Type: "nop"},
		Transfer:  TransferConfig{DelayMillis: 500},
		Reconcile: ReconcileConfig{Concurrency: 2, ChunkSize: 500, DelayMillis: 1000},
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

// Account returns the named account, or an error if it is not configured or
// incompletely paired. A missing remote pairing is a configuration error
// and fatal before any work begins.
func (c *Config) Account(name string) (*AccountConfig, error) {
	for i := range c.Accounts {
		if c.Accounts[i].Name == name {
			account := &c.Accounts[i]
			if err := account.Validate(); err != nil {
				return nil, err
			}
			return account, nil
		}
	}
	return nil, fmt.Errorf("no account named %q in config", name)
}

// Validate checks an account for the fields every command needs.
func (a *AccountConfig) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("account is missing a name")
	}
	if a.RemoteURL == "" || a.RemoteUser == "" {
		return fmt.Errorf("account %q has no remote store pairing (remote_url and remote_user required)", a.Name)
	}
	return nil
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

// Init initializes a new config file at the specified path.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
