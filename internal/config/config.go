// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sigil-dev/graphmem/internal/govern"
	"github.com/sigil-dev/graphmem/internal/store"
	gmerr "github.com/sigil-dev/graphmem/pkg/errors"
)

// Config is the top-level graphmem configuration.
type Config struct {
	Listen    string          `mapstructure:"listen"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Limits    LimitsConfig    `mapstructure:"limits"`
}

// StorageConfig selects the backend variant. The choice is made once at
// process start and is not switchable per call.
type StorageConfig struct {
	Backend          string `mapstructure:"backend"`
	Path             string `mapstructure:"path"`
	DSN              string `mapstructure:"dsn"`
	VectorDimensions int    `mapstructure:"vector_dimensions"`
}

// EmbeddingConfig controls the text-to-vector capability.
type EmbeddingConfig struct {
	Provider string        `mapstructure:"provider"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LimitsConfig sets the result governance budgets.
type LimitsConfig struct {
	NodeContentBytes int `mapstructure:"node_content_bytes"`
	DefaultResults   int `mapstructure:"default_results"`
	MaxResults       int `mapstructure:"max_results"`
	TransportBytes   int `mapstructure:"transport_bytes"`
}

// SetDefaults installs configuration defaults on the given Viper.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("listen", "127.0.0.1:18890")
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", "graphmem.db")
	v.SetDefault("storage.vector_dimensions", 1536)
	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.timeout", 15*time.Second)
	v.SetDefault("limits.node_content_bytes", govern.DefaultNodeContentBytes)
	v.SetDefault("limits.default_results", govern.DefaultResults)
	v.SetDefault("limits.max_results", govern.MaxResults)
	v.SetDefault("limits.transport_bytes", govern.DefaultTransportBytes)
}

// SetupEnv binds GRAPHMEM_-prefixed environment variables.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("GRAPHMEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, gmerr.Wrapf(err, gmerr.CodeConfigLoadReadFailure, "reading config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, gmerr.Wrapf(err, gmerr.CodeConfigParseInvalidFormat, "unmarshalling config")
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, gmerr.Wrapf(errors.Join(errs...), gmerr.CodeConfigValidateInvalidValue, "validating config")
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It returns all
// validation errors found rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateListen()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateLimits()...)

	return errs
}

func (c *Config) validateListen() []error {
	var errs []error

	if c.Listen == "" {
		return append(errs, gmerr.New(gmerr.CodeConfigValidateInvalidValue, "config: listen must not be empty"))
	}

	_, portStr, err := net.SplitHostPort(c.Listen)
	if err != nil {
		return append(errs, gmerr.Errorf(gmerr.CodeConfigValidateInvalidValue,
			"config: listen must be a valid host:port address, got %q: %w", c.Listen, err))
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, gmerr.Errorf(gmerr.CodeConfigValidateInvalidValue,
			"config: listen port must be a number, got %q", portStr))
	} else if port < 1 || port > 65535 {
		errs = append(errs, gmerr.Errorf(gmerr.CodeConfigValidateInvalidValue,
			"config: listen port must be between 1 and 65535, got %d", port))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true, "postgres": true, "memory": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, gmerr.Errorf(gmerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite, postgres, memory], got %q",
			c.Storage.Backend,
		))
	}

	switch c.Storage.Backend {
	case "sqlite":
		if c.Storage.Path == "" {
			errs = append(errs, gmerr.New(gmerr.CodeConfigValidateInvalidValue,
				"config: storage.path is required for the sqlite backend"))
		}
	case "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, gmerr.New(gmerr.CodeConfigValidateInvalidValue,
				"config: storage.dsn is required for the postgres backend"))
		}
	}

	if c.Storage.VectorDimensions <= 0 {
		errs = append(errs, gmerr.Errorf(gmerr.CodeConfigValidateInvalidValue,
			"config: storage.vector_dimensions must be positive, got %d",
			c.Storage.VectorDimensions,
		))
	}

	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error

	validProviders := map[string]bool{"openai": true, "none": true}
	if !validProviders[c.Embedding.Provider] {
		errs = append(errs, gmerr.Errorf(gmerr.CodeConfigValidateInvalidValue,
			"config: embedding.provider must be one of [openai, none], got %q",
			c.Embedding.Provider,
		))
	}

	return errs
}

func (c *Config) validateLimits() []error {
	var errs []error

	if c.Limits.MaxResults > 0 && c.Limits.DefaultResults > c.Limits.MaxResults {
		errs = append(errs, gmerr.Errorf(gmerr.CodeConfigValidateInvalidValue,
			"config: limits.default_results (%d) must not exceed limits.max_results (%d)",
			c.Limits.DefaultResults, c.Limits.MaxResults,
		))
	}

	return errs
}

// BackendConfig maps the storage section to the store factory input.
func (c *Config) BackendConfig() store.BackendConfig {
	return store.BackendConfig{
		Backend:    c.Storage.Backend,
		Path:       c.Storage.Path,
		DSN:        c.Storage.DSN,
		Dimensions: c.Storage.VectorDimensions,
	}
}

// Caps maps the limits section to governance budgets.
func (c *Config) Caps() govern.Caps {
	return govern.Caps{
		NodeContentBytes: c.Limits.NodeContentBytes,
		DefaultLimit:     c.Limits.DefaultResults,
		MaxLimit:         c.Limits.MaxResults,
		TransportBytes:   c.Limits.TransportBytes,
	}.WithDefaults()
}
