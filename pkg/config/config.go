package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

const (
	DefaultBackendURL = "http://localhost:8000"
	DefaultTimeout    = 15 * time.Second
	DefaultSearchSize = 10
	MaxSearchSize     = 100
	DefaultDebounce   = 300 * time.Millisecond
	DefaultMinChars   = 2
	DefaultCacheSize  = 128
	DefaultCacheTTL   = 30 * time.Second
)

type Config struct {
	StorageDir string        `toml:"storage_dir"`
	Backend    BackendConfig `toml:"backend"`
	Search     SearchConfig  `toml:"search"`
	Suggest    SuggestConfig `toml:"suggest"`
	Page       PageConfig    `toml:"page"`
}

type BackendConfig struct {
	URL     string   `toml:"url"`
	Timeout Duration `toml:"timeout"`
}

type SearchConfig struct {
	// Size is the number of results requested per search (1..100).
	Size int `toml:"size"`
}

type SuggestConfig struct {
	Debounce Duration `toml:"debounce"`
	MinChars int      `toml:"min_chars"`
	// CacheSize bounds the suggestion cache; 0 picks the default and a
	// negative value disables caching.
	CacheSize int      `toml:"cache_size"`
	CacheTTL  Duration `toml:"cache_ttl"`
}

type PageConfig struct {
	// ClearResults makes the clear action also drop the displayed results.
	ClearResults bool `toml:"clear_results"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// envOverrides are applied on top of the TOML file. Unset variables leave
// the file values untouched.
type envOverrides struct {
	BackendURL string        `env:"INDEXIFY_BACKEND_URL"`
	Timeout    time.Duration `env:"INDEXIFY_BACKEND_TIMEOUT"`
	SearchSize int           `env:"INDEXIFY_SEARCH_SIZE"`
	StorageDir string        `env:"INDEXIFY_STORAGE_DIR"`
}

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	cfg := &Config{StorageDir: storageDir}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadConfig reads the TOML file at configPath (defaults when it does not
// exist), then applies a .env file from the working directory and the
// INDEXIFY_* environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return loadConfig(configPath)
}

func loadConfig(configPath string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshaling config: %w", err)
		}
	}

	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	cfg.applyOverrides(overrides)

	if cfg.StorageDir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return nil, fmt.Errorf("getting default storage directory: %w", err)
		}
		cfg.StorageDir = storageDir
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyOverrides(o envOverrides) {
	if o.BackendURL != "" {
		c.Backend.URL = o.BackendURL
	}
	if o.Timeout > 0 {
		c.Backend.Timeout = Duration{o.Timeout}
	}
	if o.SearchSize > 0 {
		c.Search.Size = o.SearchSize
	}
	if o.StorageDir != "" {
		c.StorageDir = o.StorageDir
	}
}

func (c *Config) applyDefaults() {
	if c.Backend.URL == "" {
		c.Backend.URL = DefaultBackendURL
	}
	c.Backend.URL = strings.TrimRight(c.Backend.URL, "/")
	if c.Backend.Timeout.Duration == 0 {
		c.Backend.Timeout = Duration{DefaultTimeout}
	}
	if c.Search.Size == 0 {
		c.Search.Size = DefaultSearchSize
	}
	if c.Suggest.Debounce.Duration == 0 {
		c.Suggest.Debounce = Duration{DefaultDebounce}
	}
	if c.Suggest.MinChars == 0 {
		c.Suggest.MinChars = DefaultMinChars
	}
	if c.Suggest.CacheSize == 0 {
		c.Suggest.CacheSize = DefaultCacheSize
	}
	if c.Suggest.CacheTTL.Duration == 0 {
		c.Suggest.CacheTTL = Duration{DefaultCacheTTL}
	}
}

// Validate checks values the backend would reject.
func (c *Config) Validate() error {
	if c.Search.Size < 1 || c.Search.Size > MaxSearchSize {
		return fmt.Errorf("search.size must be between 1 and %d, got %d", MaxSearchSize, c.Search.Size)
	}
	if c.Suggest.MinChars < 1 {
		return fmt.Errorf("suggest.min_chars must be positive, got %d", c.Suggest.MinChars)
	}
	if !strings.HasPrefix(c.Backend.URL, "http://") && !strings.HasPrefix(c.Backend.URL, "https://") {
		return fmt.Errorf("backend.url must be an http(s) URL, got %q", c.Backend.URL)
	}
	return nil
}

// DBPath returns the path of the SQLite file holding persisted page state.
func (c *Config) DBPath() string {
	return filepath.Join(c.StorageDir, "indexify.db")
}

// LogPath returns the file the interactive shell logs to.
func (c *Config) LogPath() string {
	return filepath.Join(c.StorageDir, "indexify.log")
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// SaveTemplateConfig writes the commented sample configuration with the
// storage directory filled in.
func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	storageDir := c.StorageDir
	if storageDir == "" {
		var err error
		storageDir, err = GetDefaultStorageDir()
		if err != nil {
			return fmt.Errorf("getting default storage directory: %w", err)
		}
	}

	template := strings.Replace(configTemplate, "/home/user/.local/share/indexify", storageDir, 1)
	return os.WriteFile(configPath, []byte(template), 0644)
}

// GetDefaultStorageDir returns $XDG_DATA_HOME/indexify (or
// ~/.local/share/indexify), creating it when missing.
func GetDefaultStorageDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "indexify")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetConfigDir returns $XDG_CONFIG_HOME/indexify (or ~/.config/indexify).
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "indexify")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
