// Package config loads and validates docdex project configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. Project config (.docdex.yaml in project root)
//  3. Environment variables (DOCDEX_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gmickel/docdex/configs"
	dexerrors "github.com/gmickel/docdex/internal/errors"
)

// ProjectConfigName is the project config file name.
const ProjectConfigName = ".docdex.yaml"

// Config represents the complete docdex configuration.
type Config struct {
	Version     int                `yaml:"version" json:"version"`
	Index       IndexConfig        `yaml:"index" json:"index"`
	Collections []CollectionConfig `yaml:"collections" json:"collections"`
	Expansion   ExpansionConfig    `yaml:"expansion" json:"expansion"`
	Embeddings  EmbeddingsConfig   `yaml:"embeddings" json:"embeddings"`
	Logging     LoggingConfig      `yaml:"logging" json:"logging"`
}

// IndexConfig names the index and locates its data directory.
type IndexConfig struct {
	// Name is reported in status output. Empty defaults to the
	// project directory name.
	Name string `yaml:"name" json:"name"`
	// DataDir holds the metadata store and search indexes,
	// relative to the project root unless absolute.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// CollectionConfig declares one named collection of documents.
type CollectionConfig struct {
	Name string `yaml:"name" json:"name"`
	// Path is relative to the project root unless absolute.
	Path string `yaml:"path" json:"path"`
}

// ExpansionConfig configures query expansion.
type ExpansionConfig struct {
	// Provider selects the generator: "rule" or "openai".
	Provider string `yaml:"provider" json:"provider"`
	// Model is the chat model used when provider is "openai".
	Model string `yaml:"model" json:"model"`
	// Timeout is the hard deadline for one expansion call, as a
	// duration string like "5s".
	Timeout string `yaml:"timeout" json:"timeout"`
	// Hyde enables hypothetical document generation for the vector channel.
	Hyde bool `yaml:"hyde" json:"hyde"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "static" or "openai".
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// File is the log file path. Empty disables file logging.
	File string `yaml:"file" json:"file"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Index: IndexConfig{
			DataDir: ".docdex",
		},
		Expansion: ExpansionConfig{
			Provider: "rule",
			Model:    "gpt-4o-mini",
			Timeout:  "5s",
			Hyde:     true,
		},
		Embeddings: EmbeddingsConfig{
			Provider: "static",
			Model:    "text-embedding-3-small",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration for the project rooted at dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if cfg.Index.Name == "" {
		abs, err := filepath.Abs(dir)
		if err == nil {
			cfg.Index.Name = filepath.Base(abs)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, dexerrors.ConfigError(err.Error(), err)
	}

	return cfg, nil
}

// ConfigPath returns the project config file path for dir.
func ConfigPath(dir string) string {
	return filepath.Join(dir, ProjectConfigName)
}

// Exists reports whether dir has a project config file.
func Exists(dir string) bool {
	return fileExists(ConfigPath(dir)) || fileExists(filepath.Join(dir, ".docdex.yml"))
}

// loadFromFile attempts to load configuration from .docdex.yaml or .docdex.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := ConfigPath(dir)
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".docdex.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return dexerrors.New(dexerrors.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return dexerrors.ConfigError(
			fmt.Sprintf("failed to parse config file %s: %v", path, err), err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Index.Name != "" {
		c.Index.Name = other.Index.Name
	}
	if other.Index.DataDir != "" {
		c.Index.DataDir = other.Index.DataDir
	}

	if len(other.Collections) > 0 {
		c.Collections = other.Collections
	}

	if other.Expansion.Provider != "" {
		c.Expansion.Provider = other.Expansion.Provider
	}
	if other.Expansion.Model != "" {
		c.Expansion.Model = other.Expansion.Model
	}
	if other.Expansion.Timeout != "" {
		c.Expansion.Timeout = other.Expansion.Timeout
	}
	// Hyde defaults to true; a file that sets any expansion field gets
	// its hyde value taken as-is.
	if other.Expansion.Provider != "" || other.Expansion.Model != "" || other.Expansion.Timeout != "" {
		c.Expansion.Hyde = other.Expansion.Hyde
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.File != "" {
		c.Logging.File = other.Logging.File
	}
}

// applyEnvOverrides applies DOCDEX_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCDEX_INDEX_NAME"); v != "" {
		c.Index.Name = v
	}
	if v := os.Getenv("DOCDEX_DATA_DIR"); v != "" {
		c.Index.DataDir = v
	}
	if v := os.Getenv("DOCDEX_EXPANSION_PROVIDER"); v != "" {
		c.Expansion.Provider = v
	}
	if v := os.Getenv("DOCDEX_EXPANSION_MODEL"); v != "" {
		c.Expansion.Model = v
	}
	if v := os.Getenv("DOCDEX_EXPANSION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Expansion.Timeout = v
		}
	}
	if v := os.Getenv("DOCDEX_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("DOCDEX_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("DOCDEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	validExpansion := map[string]bool{"rule": true, "openai": true}
	if !validExpansion[strings.ToLower(c.Expansion.Provider)] {
		return fmt.Errorf("expansion.provider must be 'rule' or 'openai', got %s", c.Expansion.Provider)
	}

	if d, err := time.ParseDuration(c.Expansion.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("expansion.timeout must be a positive duration, got %q", c.Expansion.Timeout)
	}

	validEmbeddings := map[string]bool{"static": true, "openai": true}
	if !validEmbeddings[strings.ToLower(c.Embeddings.Provider)] {
		return fmt.Errorf("embeddings.provider must be 'static' or 'openai', got %s", c.Embeddings.Provider)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	seen := make(map[string]bool, len(c.Collections))
	for _, col := range c.Collections {
		if col.Name == "" {
			return fmt.Errorf("collection name must not be empty")
		}
		if col.Path == "" {
			return fmt.Errorf("collection %s has no path", col.Name)
		}
		if seen[col.Name] {
			return fmt.Errorf("duplicate collection name %s", col.Name)
		}
		seen[col.Name] = true
	}

	return nil
}

// ExpansionTimeout parses the configured expansion timeout.
// Falls back to the default when unset or unparsable.
func (c *Config) ExpansionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Expansion.Timeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// DataDir resolves the data directory against the project root.
func (c *Config) DataDir(root string) string {
	if filepath.IsAbs(c.Index.DataDir) {
		return c.Index.DataDir
	}
	return filepath.Join(root, c.Index.DataDir)
}

// DBPath returns the metadata store path under the data directory.
func (c *Config) DBPath(root string) string {
	return filepath.Join(c.DataDir(root), "docdex.db")
}

// WriteDefault writes the commented default config template to dir.
// Fails if a project config already exists.
func WriteDefault(dir string) (string, error) {
	path := ConfigPath(dir)
	if fileExists(path) {
		return "", dexerrors.ConfigError(
			fmt.Sprintf("config file already exists: %s", path), nil)
	}

	if err := os.WriteFile(path, []byte(configs.DefaultConfigTemplate), 0o644); err != nil {
		return "", dexerrors.Wrap(dexerrors.ErrCodeConfigInvalid, err)
	}

	return path, nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
