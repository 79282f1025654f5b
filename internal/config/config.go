// Package config loads server configuration from a YAML file with
// environment overrides.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds everything the server needs to start.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Generator GeneratorConfig `yaml:"generator" mapstructure:"generator"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// DatabaseConfig configures SQLite persistence.
type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// GeneratorConfig configures the Gemini client. The API key is never written
// to the config file; it comes from the environment.
type GeneratorConfig struct {
	APIKey string `yaml:"-" mapstructure:"-"`
	Model  string `yaml:"model" mapstructure:"model"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{Path: defaultDBPath()},
		Generator: GeneratorConfig{
			Model: "gemini-2.5-flash",
		},
	}
}

// Load reads the config file (if present) and applies environment overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := loadFile(ConfigPath(), cfg); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	// Environment always wins over file values.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Generator.APIKey = key
	}
	if model := os.Getenv("SCOPECRAFT_MODEL"); model != "" {
		cfg.Generator.Model = model
	}
	if db := os.Getenv("SCOPECRAFT_DB"); db != "" {
		cfg.Database.Path = db
	}
	if addr := os.Getenv("SCOPECRAFT_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return err
	}

	return v.Unmarshal(cfg)
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".scopecraft", "config.yaml")
}

func defaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".scopecraft", "scopecraft.db")
}

// WriteDefault writes a commented starter configuration to path.
func WriteDefault(path string) error {
	content := `# Scopecraft configuration
# The Gemini API key is read from the GEMINI_API_KEY environment variable.

server:
  addr: ":8080"

database:
  path: "~/.scopecraft/scopecraft.db"

generator:
  model: "gemini-2.5-flash"
`

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}
