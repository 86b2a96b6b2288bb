package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// DataDirEnv overrides the default data directory when set.
const DataDirEnv = "OWLPLUG_DATA_DIR"

// Config is the top-level configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Install InstallConfig `yaml:"install"`
	Explore ExploreConfig `yaml:"explore"`
	Tasks   TasksConfig   `yaml:"tasks"`
}

// ServerConfig holds server and storage settings
type ServerConfig struct {
	Listen  string `yaml:"listen"`
	DataDir string `yaml:"data_dir"`
	DBPath  string `yaml:"db_path"`
}

// InstallConfig holds package installation settings
type InstallConfig struct {
	// TempDir receives downloaded archives and extraction directories.
	TempDir string `yaml:"temp_dir"`
	// Platform overrides the detected platform tag ("win" or "osx").
	Platform string `yaml:"platform"`
	// CleanupOnFailure removes temporary artifacts when an install fails.
	CleanupOnFailure bool   `yaml:"cleanup_on_failure"`
	UserAgent        string `yaml:"user_agent"`
}

// ExploreConfig holds project exploration settings
type ExploreConfig struct {
	Extensions       []string `yaml:"extensions"`
	MaxDocumentBytes ByteSize `yaml:"max_document_bytes"`
}

// TasksConfig holds background task runner settings
type TasksConfig struct {
	Workers int `yaml:"workers"`
}

// DefaultDataDir resolves the data directory from the environment, then XDG.
func DefaultDataDir() string {
	if explicit := os.Getenv(DataDirEnv); explicit != "" {
		return explicit
	}
	xdg.Reload()
	if xdg.DataHome != "" {
		return filepath.Join(xdg.DataHome, "owlplug")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "owlplug")
	}
	return filepath.Join(os.TempDir(), "owlplug")
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:  "127.0.0.1:8470",
			DataDir: DefaultDataDir(),
		},
		Install: InstallConfig{
			UserAgent: "owlplug/1.0",
		},
		Explore: ExploreConfig{
			Extensions:       []string{".als"},
			MaxDocumentBytes: 512 << 20,
		},
		Tasks: TasksConfig{
			Workers: 2,
		},
	}
}

// Load reads a config file from the given path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Install.Platform {
	case "", "win", "osx":
	default:
		return fmt.Errorf("invalid install.platform %q (expected \"win\" or \"osx\")", c.Install.Platform)
	}
	if c.Tasks.Workers < 0 {
		return fmt.Errorf("invalid tasks.workers %d", c.Tasks.Workers)
	}
	if c.Explore.MaxDocumentBytes < 0 {
		return fmt.Errorf("invalid explore.max_document_bytes %d", c.Explore.MaxDocumentBytes)
	}
	return nil
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() (string, error) {
	searchPaths := []string{"owlplug.yaml"}

	if p, err := xdg.SearchConfigFile(filepath.Join("owlplug", "owlplug.yaml")); err == nil {
		searchPaths = append(searchPaths, p)
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", searchPaths)
}

// DBPath returns the configured database path, defaulting under the data dir.
func (c *Config) DBPath() string {
	if c.Server.DBPath != "" {
		return c.Server.DBPath
	}
	return filepath.Join(c.Server.DataDir, "owlplug.db")
}

// TempDir returns the directory used for install downloads and extraction.
func (c *Config) TempDir() string {
	if c.Install.TempDir != "" {
		return c.Install.TempDir
	}
	return filepath.Join(c.Server.DataDir, "temp")
}
