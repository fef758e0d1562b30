// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/graphmem/internal/store"
	"github.com/sigil-dev/graphmem/internal/store/sqlite"
)

// testDir creates a temp directory for a test and returns cleanup func.
func testDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "graphmem-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(testDir(t), name+".db")
}

// testStore opens a store with two-dimensional vectors for compact fixtures.
func testStore(t *testing.T, name string) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(testDBPath(t, name), 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func insertNode(t *testing.T, s *sqlite.Store, id, nodeType, label string, at time.Time) {
	t.Helper()
	require.NoError(t, s.InsertNode(context.Background(), &store.Node{
		ID:        id,
		Type:      nodeType,
		Label:     label,
		CreatedAt: at,
		UpdatedAt: at,
	}))
}
