// Package config loads and persists the on-disk state a client needs
// between invocations: the configured repository list, the default
// repository alias, cached per-repository RepositoryInfo, and the
// per-directory variables store. Nothing here talks to a repository; it
// only manages the JSON files collaborators read and write.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/nrp-cz/nrp-go-client/model"
)

// configPathEnv overrides the default config file location.
const configPathEnv = "NRP_CMD_CONFIG_PATH"

// RepositoryConfig is one configured repository: its connection parameters
// and the last RepositoryInfo discovered for it.
type RepositoryConfig struct {
	Alias             string               `json:"alias" mapstructure:"alias"`
	URL               string               `json:"url" mapstructure:"url"`
	Token             string               `json:"token,omitempty" mapstructure:"token"`
	VerifyTLS         bool                 `json:"verify_tls" mapstructure:"verify_tls"`
	RetryCount        int                  `json:"retry_count" mapstructure:"retry_count"`
	RetryAfterSeconds int                  `json:"retry_after_seconds" mapstructure:"retry_after_seconds"`
	Enabled           bool                 `json:"enabled" mapstructure:"enabled"`
	Info              *model.RepositoryInfo `json:"info,omitempty" mapstructure:"info"`
}

// VariablesStore is the `{variables: {name: [value, ...]}}` shape shared by
// the per-directory variable bindings embedded in the main config.
type VariablesStore struct {
	Variables map[string][]string `json:"variables" mapstructure:"variables"`
}

type fileData struct {
	Repositories          []RepositoryConfig        `json:"repositories" mapstructure:"repositories"`
	DefaultAlias          string                    `json:"default_alias,omitempty" mapstructure:"default_alias"`
	PerDirectoryVariables map[string]VariablesStore `json:"per_directory_variables,omitempty" mapstructure:"per_directory_variables"`
}

// Manager owns the on-disk config file at Path and the in-memory state
// loaded from (or to be saved to) it.
type Manager struct {
	Path string

	v    *viper.Viper
	data fileData
}

// NewManager builds a Manager bound to path. An empty path resolves via
// NRP_CMD_CONFIG_PATH, falling back to ~/.nrp/config.json.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		resolved, err := defaultPath()
		if err != nil {
			return nil, err
		}
		path = resolved
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.AutomaticEnv()

	return &Manager{Path: path, v: v}, nil
}

func defaultPath() (string, error) {
	if p := os.Getenv(configPathEnv); p != "" {
		return p, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".nrp", "config.json"), nil
}

// Load reads Path into memory. A missing file is not an error: Manager
// starts from an empty configuration, matching a first-run client.
func (m *Manager) Load() error {
	if err := m.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			m.data = fileData{}
			return nil
		}
		return fmt.Errorf("config: read %s: %w", m.Path, err)
	}

	var data fileData
	decode := func(c *mapstructure.DecoderConfig) { c.TagName = "mapstructure" }
	if err := m.v.Unmarshal(&data, decode); err != nil {
		return fmt.Errorf("config: decode %s: %w", m.Path, err)
	}
	m.data = data
	return nil
}

// Save writes the in-memory configuration to Path as JSON, creating parent
// directories as needed.
func (m *Manager) Save() error {
	if err := os.MkdirAll(filepath.Dir(m.Path), 0o700); err != nil {
		return fmt.Errorf("config: create config directory: %w", err)
	}
	encoded, err := json.MarshalIndent(m.data, "", "  ")
	if err != nil {
		return fmt.Errorf("config: encode %s: %w", m.Path, err)
	}
	if err := os.WriteFile(m.Path, encoded, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", m.Path, err)
	}
	return nil
}

// Repositories returns every configured repository.
func (m *Manager) Repositories() []RepositoryConfig {
	return append([]RepositoryConfig(nil), m.data.Repositories...)
}

// Repository looks up a configured repository by alias.
func (m *Manager) Repository(alias string) (RepositoryConfig, bool) {
	for _, repo := range m.data.Repositories {
		if repo.Alias == alias {
			return repo, true
		}
	}
	return RepositoryConfig{}, false
}

// PutRepository inserts cfg, or replaces the existing entry sharing its
// alias — the path used both for adding a new repository and for
// persisting a refreshed RepositoryInfo.
func (m *Manager) PutRepository(cfg RepositoryConfig) error {
	if cfg.Alias == "" {
		return fmt.Errorf("config: repository alias must not be empty")
	}
	for i, repo := range m.data.Repositories {
		if repo.Alias == cfg.Alias {
			m.data.Repositories[i] = cfg
			return nil
		}
	}
	m.data.Repositories = append(m.data.Repositories, cfg)
	return nil
}

// RemoveRepository deletes the repository with the given alias, clearing
// DefaultAlias if it pointed at the removed entry.
func (m *Manager) RemoveRepository(alias string) error {
	for i, repo := range m.data.Repositories {
		if repo.Alias == alias {
			m.data.Repositories = append(m.data.Repositories[:i], m.data.Repositories[i+1:]...)
			if m.data.DefaultAlias == alias {
				m.data.DefaultAlias = ""
			}
			return nil
		}
	}
	return fmt.Errorf("config: no repository with alias %q", alias)
}

// SetDefaultAlias marks alias as the default repository. alias must already
// be configured.
func (m *Manager) SetDefaultAlias(alias string) error {
	if _, ok := m.Repository(alias); !ok {
		return fmt.Errorf("config: no repository with alias %q", alias)
	}
	m.data.DefaultAlias = alias
	return nil
}

// DefaultAlias returns the configured default alias, or "" if none is set.
func (m *Manager) DefaultAlias() string {
	return m.data.DefaultAlias
}

// DefaultRepository returns the repository marked as default, if any.
func (m *Manager) DefaultRepository() (RepositoryConfig, bool) {
	if m.data.DefaultAlias == "" {
		return RepositoryConfig{}, false
	}
	return m.Repository(m.data.DefaultAlias)
}
