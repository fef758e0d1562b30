// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sigil-dev/graphmem/internal/govern"
	"github.com/sigil-dev/graphmem/internal/search"
	"github.com/sigil-dev/graphmem/internal/server"
	"github.com/sigil-dev/graphmem/internal/store"
	gmerr "github.com/sigil-dev/graphmem/pkg/errors"

	_ "github.com/sigil-dev/graphmem/internal/store/memory"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec creates a server with all routes registered and extracts the
// OpenAPI spec that huma generates from the Go type annotations. The
// in-memory backend backs the routes; handlers are never invoked during
// spec generation.
func generateSpec() ([]byte, error) {
	backend, err := store.Open(store.BackendConfig{Backend: "memory"})
	if err != nil {
		return nil, gmerr.Wrap(err, gmerr.CodeCLISetupFailure, "opening memory backend")
	}
	defer func() { _ = backend.Close() }()

	nodes := store.NewNodes(backend, nil, nil)
	engine := search.New(backend, nil, nil)

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, nodes, engine, govern.Default())
	if err != nil {
		return nil, gmerr.Wrap(err, gmerr.CodeCLISetupFailure, "creating server")
	}

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}
