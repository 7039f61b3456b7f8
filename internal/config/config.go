// Package config loads the rabiesbot configuration: the shared core sections
// plus content, session storage and database settings.
package config

import (
	"fmt"
	"slices"
	"strings"

	coreconfig "github.com/m3rciful/rabiesbot/core/config"
	coredatabase "github.com/m3rciful/rabiesbot/core/database"
	"github.com/m3rciful/rabiesbot/internal/session"
)

const (
	DefaultContentPath     = "content/content.json"
	DefaultContentLanguage = "en"
)

// DefaultLanguages are offered on the welcome screen when none are configured.
var DefaultLanguages = []string{"en", "hi"}

// ContentConfig locates the content document and the languages offered from it.
type ContentConfig struct {
	Path            string   `yaml:"path" envconfig:"CONTENT_PATH"`
	Languages       []string `yaml:"languages" envconfig:"CONTENT_LANGUAGES"`
	DefaultLanguage string   `yaml:"default_language" envconfig:"CONTENT_DEFAULT_LANGUAGE"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Content  ContentConfig       `yaml:"content"`
	Sessions session.Config      `yaml:"sessions"`
	Database coredatabase.Config `yaml:"database"`
}

// Load reads path, applies .env and environment overrides and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// DatabaseConfig returns the database settings when the session backend needs them.
func (c *Config) DatabaseConfig() *coredatabase.Config {
	if c == nil || c.Sessions.Backend != session.BackendPostgres {
		return nil
	}
	db := c.Database
	return &db
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}

	if strings.TrimSpace(c.Content.Path) == "" {
		c.Content.Path = DefaultContentPath
	}
	langs := make([]string, 0, len(c.Content.Languages))
	for _, l := range c.Content.Languages {
		l = strings.ToLower(strings.TrimSpace(l))
		if l != "" && !slices.Contains(langs, l) {
			langs = append(langs, l)
		}
	}
	if len(langs) == 0 {
		langs = slices.Clone(DefaultLanguages)
	}
	c.Content.Languages = langs

	def := strings.ToLower(strings.TrimSpace(c.Content.DefaultLanguage))
	if def == "" {
		def = DefaultContentLanguage
	}
	if !slices.Contains(langs, def) {
		return fmt.Errorf("content.default_language %q is not one of content.languages %v", def, langs)
	}
	c.Content.DefaultLanguage = def

	backend, err := session.NormalizeBackend(c.Sessions.Backend)
	if err != nil {
		return fmt.Errorf("sessions.backend: %w", err)
	}
	c.Sessions.Backend = backend
	switch backend {
	case session.BackendPostgres:
		if err := c.Database.Normalize(); err != nil {
			return err
		}
	case session.BackendRedis:
		if strings.TrimSpace(c.Sessions.Redis.Addr) == "" {
			return fmt.Errorf("sessions.redis.addr is required when sessions.backend is 'redis'")
		}
	}
	return nil
}
