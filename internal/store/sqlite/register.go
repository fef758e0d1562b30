// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package sqlite

import (
	"github.com/sigil-dev/graphmem/internal/store"
	gmerr "github.com/sigil-dev/graphmem/pkg/errors"
)

func init() {
	store.RegisterBackend("sqlite", func(cfg store.BackendConfig) (store.Backend, error) {
		if cfg.Path == "" {
			return nil, gmerr.New(gmerr.CodeConfigValidateInvalidValue,
				"sqlite backend requires storage.path")
		}
		return New(cfg.Path, cfg.Dimensions)
	})
}
