// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/graphmem/internal/store"
	"github.com/sigil-dev/graphmem/internal/store/memory"
	gmerr "github.com/sigil-dev/graphmem/pkg/errors"
)

func TestVector_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, "vec-upsert")

	insertNode(t, s, "n-1", "note", "first", time.Now().UTC())

	has, err := s.HasVector(ctx, "n-1")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.UpsertVector(ctx, "n-1", []float32{1, 0}))

	has, err = s.HasVector(ctx, "n-1")
	require.NoError(t, err)
	assert.True(t, has)

	got, err := s.GetNode(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, got.Embedding)

	// Upsert replaces the existing record in place.
	require.NoError(t, s.UpsertVector(ctx, "n-1", []float32{0, 1}))
	got, err = s.GetNode(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, got.Embedding)
}

func TestVector_UpsertValidation(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, "vec-validate")

	err := s.UpsertVector(ctx, "ghost", []float32{1, 0})
	require.Error(t, err)
	assert.True(t, gmerr.IsNotFound(err), "no vector record without an owning node")

	insertNode(t, s, "n-1", "note", "first", time.Now().UTC())
	err = s.UpsertVector(ctx, "n-1", []float32{1, 0, 0})
	require.Error(t, err)
	assert.True(t, gmerr.IsInvalidInput(err), "dimension mismatch is rejected")
}

func TestVector_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, "vec-delete")

	insertNode(t, s, "n-1", "note", "first", time.Now().UTC())
	require.NoError(t, s.UpsertVector(ctx, "n-1", []float32{1, 0}))

	require.NoError(t, s.DeleteVector(ctx, "n-1"))
	require.NoError(t, s.DeleteVector(ctx, "n-1"), "deleting an absent vector is a no-op")

	has, err := s.HasVector(ctx, "n-1")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestVector_QueryNearestOrdering(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, "vec-nearest")

	now := time.Now().UTC()
	fixtures := map[string][]float32{
		"n-a": {1, 0},
		"n-b": {0.9, 0.1},
		"n-c": {0, 1},
	}
	for id, vec := range fixtures {
		insertNode(t, s, id, "note", id, now)
		require.NoError(t, s.UpsertVector(ctx, id, vec))
	}

	hits, err := s.QueryNearest(ctx, []float32{1, 0}, 2, store.NearestFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "n-a", hits[0].NodeID)
	assert.InDelta(t, 0.0, hits[0].Distance, 1e-6, "exact match has zero distance")
	assert.Equal(t, "n-b", hits[1].NodeID)
	assert.Greater(t, hits[1].Distance, hits[0].Distance)
}

func TestVector_QueryNearestTieBreak(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, "vec-ties")

	now := time.Now().UTC()
	for _, id := range []string{"n-z", "n-a"} {
		insertNode(t, s, id, "note", id, now)
		require.NoError(t, s.UpsertVector(ctx, id, []float32{1, 0}))
	}

	hits, err := s.QueryNearest(ctx, []float32{1, 0}, 10, store.NearestFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "n-a", hits[0].NodeID, "node id ascending breaks distance ties")
	assert.Equal(t, "n-z", hits[1].NodeID)
}

func TestVector_QueryNearestTypeFilter(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, "vec-filter")

	now := time.Now().UTC()
	insertNode(t, s, "n-note", "note", "a note", now)
	require.NoError(t, s.UpsertVector(ctx, "n-note", []float32{1, 0}))
	insertNode(t, s, "n-task", "task", "a task", now)
	require.NoError(t, s.UpsertVector(ctx, "n-task", []float32{1, 0}))

	hits, err := s.QueryNearest(ctx, []float32{1, 0}, 10, store.NearestFilter{Type: "task"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "n-task", hits[0].NodeID)
}

func TestVector_QueryNearestSkipsUnembedded(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, "vec-skip")

	now := time.Now().UTC()
	insertNode(t, s, "n-vec", "note", "with vector", now)
	require.NoError(t, s.UpsertVector(ctx, "n-vec", []float32{1, 0}))
	insertNode(t, s, "n-bare", "note", "no vector", now)

	hits, err := s.QueryNearest(ctx, []float32{1, 0}, 10, store.NearestFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 1, "nodes without vectors are invisible to search")
	assert.Equal(t, "n-vec", hits[0].NodeID)
}

func TestVector_QueryNearestEmpty(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, "vec-empty")

	hits, err := s.QueryNearest(ctx, []float32{1, 0}, 5, store.NearestFilter{})
	require.NoError(t, err, "empty table yields no hits, not an error")
	assert.Empty(t, hits)
}

func TestVector_BackendEquivalence(t *testing.T) {
	ctx := context.Background()
	sq := testStore(t, "vec-equiv")
	mem := memory.New(2)

	now := time.Now().UTC()
	fixtures := map[string][]float32{
		"n-a": {1, 0},
		"n-b": {0.9, 0.1},
		"n-c": {0, 1},
		"n-d": {0.5, 0.5},
	}
	for id, vec := range fixtures {
		insertNode(t, sq, id, "note", id, now)
		require.NoError(t, sq.UpsertVector(ctx, id, vec))
		require.NoError(t, mem.InsertNode(ctx, &store.Node{ID: id, Type: "note", Label: id, CreatedAt: now, UpdatedAt: now}))
		require.NoError(t, mem.UpsertVector(ctx, id, vec))
	}

	query := []float32{0.8, 0.2}
	sqHits, err := sq.QueryNearest(ctx, query, 4, store.NearestFilter{})
	require.NoError(t, err)
	memHits, err := mem.QueryNearest(ctx, query, 4, store.NearestFilter{})
	require.NoError(t, err)

	require.Len(t, sqHits, len(memHits))
	for i := range sqHits {
		assert.Equal(t, memHits[i].NodeID, sqHits[i].NodeID,
			"identical inputs rank identically across backends")
	}
}

func TestVector_DeleteNodeCascadesVector(t *testing.T) {
	ctx := context.Background()
	s := testStore(t, "vec-cascade")

	insertNode(t, s, "n-1", "note", "first", time.Now().UTC())
	require.NoError(t, s.UpsertVector(ctx, "n-1", []float32{1, 0}))

	require.NoError(t, s.DeleteNode(ctx, "n-1"))

	hits, err := s.QueryNearest(ctx, []float32{1, 0}, 5, store.NearestFilter{})
	require.NoError(t, err)
	assert.Empty(t, hits, "vector record removed in the same transaction as the node")
}
