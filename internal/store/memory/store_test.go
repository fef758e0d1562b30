// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package memory_test

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

func testNode(id, nodeType, label string, at time.Time) *store.Node {
	return &store.Node{
		ID:        id,
		Type:      nodeType,
		Label:     label,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestStore_NodeCRUD(t *testing.T) {
	ctx := context.Background()
	s := memory.New(2)

	now := time.Now().UTC()
	node := testNode("n-1", "note", "first", now)
	node.Content = "hello"
	node.Metadata = map[string]string{"source": "test"}

	require.NoError(t, s.InsertNode(ctx, node))

	got, err := s.GetNode(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Label)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, "test", got.Metadata["source"])
	assert.Nil(t, got.Embedding)

	got.Label = "renamed"
	require.NoError(t, s.UpdateNode(ctx, got))

	got, err = s.GetNode(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Label)

	require.NoError(t, s.DeleteNode(ctx, "n-1"))

	_, err = s.GetNode(ctx, "n-1")
	require.Error(t, err)
	assert.True(t, gmerr.IsNotFound(err))
}

func TestStore_GetNodeCopiesState(t *testing.T) {
	ctx := context.Background()
	s := memory.New(2)

	node := testNode("n-1", "note", "first", time.Now().UTC())
	node.Metadata = map[string]string{"k": "v"}
	require.NoError(t, s.InsertNode(ctx, node))

	got, err := s.GetNode(ctx, "n-1")
	require.NoError(t, err)
	got.Metadata["k"] = "mutated"

	again, err := s.GetNode(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, "v", again.Metadata["k"], "caller mutations do not leak into the store")
}

func TestStore_ListNodesOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	s := memory.New(2)

	base := time.Now().UTC()
	require.NoError(t, s.InsertNode(ctx, testNode("n-b", "note", "second", base.Add(time.Second))))
	require.NoError(t, s.InsertNode(ctx, testNode("n-a", "note", "first", base)))
	require.NoError(t, s.InsertNode(ctx, testNode("n-c", "task", "third", base.Add(2*time.Second))))

	all, err := s.ListNodes(ctx, store.NodeQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "n-a", all[0].ID, "creation order")
	assert.Equal(t, "n-b", all[1].ID)
	assert.Equal(t, "n-c", all[2].ID)

	notes, err := s.ListNodes(ctx, store.NodeQuery{Type: "note"})
	require.NoError(t, err)
	assert.Len(t, notes, 2)

	limited, err := s.ListNodes(ctx, store.NodeQuery{ListOpts: store.ListOpts{Limit: 1, Offset: 1}})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "n-b", limited[0].ID)
}

func TestStore_ListRecentOrder(t *testing.T) {
	ctx := context.Background()
	s := memory.New(2)

	base := time.Now().UTC()
	require.NoError(t, s.InsertNode(ctx, testNode("n-a", "note", "oldest", base)))
	require.NoError(t, s.InsertNode(ctx, testNode("n-b", "note", "newest", base.Add(2*time.Second))))
	require.NoError(t, s.InsertNode(ctx, testNode("n-c", "note", "middle", base.Add(time.Second))))

	recent, err := s.ListRecent(ctx, store.ListOpts{})
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "n-b", recent[0].ID, "most recently updated first")
	assert.Equal(t, "n-c", recent[1].ID)
	assert.Equal(t, "n-a", recent[2].ID)
}

func TestStore_Vectors(t *testing.T) {
	ctx := context.Background()
	s := memory.New(2)

	require.NoError(t, s.InsertNode(ctx, testNode("n-1", "note", "first", time.Now().UTC())))

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

	// Upsert replaces in place.
	require.NoError(t, s.UpsertVector(ctx, "n-1", []float32{0, 1}))
	got, err = s.GetNode(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, got.Embedding)

	// Deleting an absent vector is a no-op.
	require.NoError(t, s.DeleteVector(ctx, "n-1"))
	require.NoError(t, s.DeleteVector(ctx, "n-1"))
}

func TestStore_UpsertVectorValidation(t *testing.T) {
	ctx := context.Background()
	s := memory.New(2)

	err := s.UpsertVector(ctx, "missing", []float32{1, 0})
	require.Error(t, err)
	assert.True(t, gmerr.IsNotFound(err))

	require.NoError(t, s.InsertNode(ctx, testNode("n-1", "note", "first", time.Now().UTC())))
	err = s.UpsertVector(ctx, "n-1", []float32{1, 0, 0})
	require.Error(t, err)
	assert.True(t, gmerr.IsInvalidInput(err), "dimension mismatch is rejected")
}

func TestStore_QueryNearestOrdering(t *testing.T) {
	ctx := context.Background()
	s := memory.New(2)

	now := time.Now().UTC()
	vectors := map[string][]float32{
		"n-a": {1, 0},
		"n-b": {0.9, 0.1},
		"n-c": {0, 1},
	}
	for id, vec := range vectors {
		require.NoError(t, s.InsertNode(ctx, testNode(id, "note", id, now)))
		require.NoError(t, s.UpsertVector(ctx, id, vec))
	}

	hits, err := s.QueryNearest(ctx, []float32{1, 0}, 2, store.NearestFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "n-a", hits[0].NodeID)
	assert.InDelta(t, 0.0, hits[0].Distance, 1e-9, "exact match has zero distance")
	assert.Equal(t, "n-b", hits[1].NodeID)
	assert.Greater(t, hits[1].Distance, hits[0].Distance)
}

func TestStore_QueryNearestTieBreak(t *testing.T) {
	ctx := context.Background()
	s := memory.New(2)

	now := time.Now().UTC()
	// Equidistant from the query; ids decide the order.
	for _, id := range []string{"n-z", "n-a"} {
		require.NoError(t, s.InsertNode(ctx, testNode(id, "note", id, now)))
		require.NoError(t, s.UpsertVector(ctx, id, []float32{1, 0}))
	}

	hits, err := s.QueryNearest(ctx, []float32{1, 0}, 10, store.NearestFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "n-a", hits[0].NodeID, "node id ascending breaks distance ties")
	assert.Equal(t, "n-z", hits[1].NodeID)
}

func TestStore_QueryNearestFilterAndSkips(t *testing.T) {
	ctx := context.Background()
	s := memory.New(2)

	now := time.Now().UTC()
	require.NoError(t, s.InsertNode(ctx, testNode("n-note", "note", "a note", now)))
	require.NoError(t, s.UpsertVector(ctx, "n-note", []float32{1, 0}))
	require.NoError(t, s.InsertNode(ctx, testNode("n-task", "task", "a task", now)))
	require.NoError(t, s.UpsertVector(ctx, "n-task", []float32{1, 0}))
	// No vector: invisible to search, not an error.
	require.NoError(t, s.InsertNode(ctx, testNode("n-bare", "note", "no vector", now)))

	hits, err := s.QueryNearest(ctx, []float32{1, 0}, 10, store.NearestFilter{Type: "note"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "n-note", hits[0].NodeID)
}

func TestStore_QueryNearestEmpty(t *testing.T) {
	ctx := context.Background()
	s := memory.New(2)

	hits, err := s.QueryNearest(ctx, []float32{1, 0}, 5, store.NearestFilter{})
	require.NoError(t, err, "empty store yields no hits, not an error")
	assert.Empty(t, hits)
}

func TestStore_Edges(t *testing.T) {
	ctx := context.Background()
	s := memory.New(2)

	now := time.Now().UTC()
	require.NoError(t, s.InsertNode(ctx, testNode("n-a", "note", "a", now)))
	require.NoError(t, s.InsertNode(ctx, testNode("n-b", "note", "b", now)))

	edge := &store.Edge{ID: "e-1", FromID: "n-a", ToID: "n-b", Relation: "links", CreatedAt: now}
	require.NoError(t, s.PutEdge(ctx, edge))

	edges, err := s.ListEdges(ctx, store.ListOpts{})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "links", edges[0].Relation)

	err = s.PutEdge(ctx, &store.Edge{ID: "e-2", FromID: "n-a", ToID: "ghost", Relation: "links", CreatedAt: now})
	require.Error(t, err)
	assert.True(t, gmerr.IsNotFound(err), "edges require both endpoints")
}

func TestStore_DeleteNodeCascades(t *testing.T) {
	ctx := context.Background()
	s := memory.New(2)

	now := time.Now().UTC()
	require.NoError(t, s.InsertNode(ctx, testNode("n-a", "note", "a", now)))
	require.NoError(t, s.InsertNode(ctx, testNode("n-b", "note", "b", now)))
	require.NoError(t, s.UpsertVector(ctx, "n-a", []float32{1, 0}))
	require.NoError(t, s.PutEdge(ctx, &store.Edge{ID: "e-1", FromID: "n-a", ToID: "n-b", Relation: "links", CreatedAt: now}))

	require.NoError(t, s.DeleteNode(ctx, "n-a"))

	edges, err := s.ListEdges(ctx, store.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, edges, "incident edges removed with the node")

	hits, err := s.QueryNearest(ctx, []float32{1, 0}, 5, store.NearestFilter{})
	require.NoError(t, err)
	assert.Empty(t, hits, "vector removed with the node")
}
