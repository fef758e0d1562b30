// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package store

import (
	"sync"

	gmerr "github.com/sigil-dev/graphmem/pkg/errors"
)

// defaultVectorDimensions is the default embedding dimension (matches OpenAI text-embedding-ada-002).
const defaultVectorDimensions = 1536

// BackendConfig is the one-time, deployment-level backend selection.
// The variant chosen here never changes at runtime.
type BackendConfig struct {
	Backend    string // "sqlite", "postgres", or "memory"
	Path       string // sqlite database file path
	DSN        string // postgres connection string
	Dimensions int    // embedding dimensions; 0 uses the default (1536)
}

// BackendFactory creates a storage backend from its configuration.
type BackendFactory func(cfg BackendConfig) (Backend, error)

var (
	backendFactories = map[string]BackendFactory{}
	factoriesMu      sync.RWMutex
)

// RegisterBackend registers a factory function for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, factory BackendFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	backendFactories[name] = factory
}

// Open constructs the configured backend variant. Selection happens exactly
// once at process start; an unknown backend name is a fatal configuration
// error, not a recoverable runtime condition.
func Open(cfg BackendConfig) (Backend, error) {
	if cfg.Backend == "" {
		cfg.Backend = "sqlite"
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = defaultVectorDimensions
	}

	factoriesMu.RLock()
	factory, ok := backendFactories[cfg.Backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, gmerr.New(gmerr.CodeStoreBackendMismatch,
			"unsupported storage backend "+cfg.Backend,
			gmerr.FieldBackend(cfg.Backend),
		)
	}

	return factory(cfg)
}
