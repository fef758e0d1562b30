// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/sigil-dev/graphmem/internal/store"
	gmerr "github.com/sigil-dev/graphmem/pkg/errors"
)

func init() {
	store.RegisterBackend("memory", func(cfg store.BackendConfig) (store.Backend, error) {
		return New(cfg.Dimensions), nil
	})
}

// Compile-time interface check.
var _ store.Backend = (*Store)(nil)

// Store is an in-process backend for tests and development runs. It applies
// the same ordering contract as the SQL variants: nearest-neighbor hits by
// ascending L2 distance with node-id tie-break.
type Store struct {
	mu         sync.RWMutex
	nodes      map[string]*store.Node
	vectors    map[string][]float32
	edges      map[string]*store.Edge
	dimensions int
}

// New creates an empty in-memory store with the given vector dimensionality.
func New(dimensions int) *Store {
	return &Store{
		nodes:      make(map[string]*store.Node),
		vectors:    make(map[string][]float32),
		edges:      make(map[string]*store.Edge),
		dimensions: dimensions,
	}
}

func (s *Store) Name() string    { return "memory" }
func (s *Store) Dimensions() int { return s.dimensions }
func (s *Store) Close() error    { return nil }

func (s *Store) InsertNode(_ context.Context, node *store.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes[node.ID] = copyNode(node)
	return nil
}

func (s *Store) UpdateNode(_ context.Context, node *store.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[node.ID]; !ok {
		return notFound(node.ID)
	}
	s.nodes[node.ID] = copyNode(node)
	return nil
}

func (s *Store) GetNode(_ context.Context, id string) (*store.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, notFound(id)
	}

	out := copyNode(node)
	if vec, ok := s.vectors[id]; ok {
		out.Embedding = append([]float32(nil), vec...)
	}
	return out, nil
}

func (s *Store) DeleteNode(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return notFound(id)
	}

	delete(s.nodes, id)
	delete(s.vectors, id)
	for edgeID, edge := range s.edges {
		if edge.FromID == id || edge.ToID == id {
			delete(s.edges, edgeID)
		}
	}
	return nil
}

func (s *Store) ListNodes(_ context.Context, query store.NodeQuery) ([]*store.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var nodes []*store.Node
	for _, node := range s.nodes {
		if query.Type != "" && node.Type != query.Type {
			continue
		}
		nodes = append(nodes, node)
	}

	sort.Slice(nodes, func(i, j int) bool {
		if !nodes[i].CreatedAt.Equal(nodes[j].CreatedAt) {
			return nodes[i].CreatedAt.Before(nodes[j].CreatedAt)
		}
		return nodes[i].ID < nodes[j].ID
	})

	return s.page(nodes, query.ListOpts), nil
}

func (s *Store) ListRecent(_ context.Context, opts store.ListOpts) ([]*store.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*store.Node, 0, len(s.nodes))
	for _, node := range s.nodes {
		nodes = append(nodes, node)
	}

	sort.Slice(nodes, func(i, j int) bool {
		if !nodes[i].UpdatedAt.Equal(nodes[j].UpdatedAt) {
			return nodes[i].UpdatedAt.After(nodes[j].UpdatedAt)
		}
		return nodes[i].ID < nodes[j].ID
	})

	return s.page(nodes, opts), nil
}

func (s *Store) PutEdge(_ context.Context, edge *store.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[edge.FromID]; !ok {
		return notFound(edge.FromID)
	}
	if _, ok := s.nodes[edge.ToID]; !ok {
		return notFound(edge.ToID)
	}

	e := *edge
	s.edges[edge.ID] = &e
	return nil
}

func (s *Store) ListEdges(_ context.Context, opts store.ListOpts) ([]*store.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := make([]*store.Edge, 0, len(s.edges))
	for _, edge := range s.edges {
		e := *edge
		edges = append(edges, &e)
	}

	sort.Slice(edges, func(i, j int) bool {
		if !edges[i].CreatedAt.Equal(edges[j].CreatedAt) {
			return edges[i].CreatedAt.Before(edges[j].CreatedAt)
		}
		return edges[i].ID < edges[j].ID
	})

	offset := opts.Offset
	if offset > len(edges) {
		offset = len(edges)
	}
	edges = edges[offset:]
	if opts.Limit > 0 && len(edges) > opts.Limit {
		edges = edges[:opts.Limit]
	}
	return edges, nil
}

func (s *Store) UpsertVector(_ context.Context, nodeID string, vector []float32) error {
	if len(vector) != s.dimensions {
		return dimensionError(len(vector), s.dimensions)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[nodeID]; !ok {
		return notFound(nodeID)
	}
	s.vectors[nodeID] = append([]float32(nil), vector...)
	return nil
}

func (s *Store) DeleteVector(_ context.Context, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.vectors, nodeID)
	return nil
}

func (s *Store) HasVector(_ context.Context, nodeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.vectors[nodeID]
	return ok, nil
}

func (s *Store) QueryNearest(_ context.Context, vector []float32, topK int, filter store.NearestFilter) ([]store.NearestHit, error) {
	if len(vector) != s.dimensions {
		return nil, dimensionError(len(vector), s.dimensions)
	}
	if topK <= 0 {
		return nil, gmerr.Errorf(gmerr.CodeStoreInvalidInput, "topK must be positive, got %d", topK)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []store.NearestHit
	for nodeID, stored := range s.vectors {
		node, ok := s.nodes[nodeID]
		if !ok {
			continue
		}
		if filter.Type != "" && node.Type != filter.Type {
			continue
		}
		hits = append(hits, store.NearestHit{NodeID: nodeID, Distance: l2Distance(vector, stored)})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].NodeID < hits[j].NodeID
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *Store) page(nodes []*store.Node, opts store.ListOpts) []*store.Node {
	offset := opts.Offset
	if offset > len(nodes) {
		offset = len(nodes)
	}
	nodes = nodes[offset:]
	if opts.Limit > 0 && len(nodes) > opts.Limit {
		nodes = nodes[:opts.Limit]
	}

	out := make([]*store.Node, len(nodes))
	for i, node := range nodes {
		out[i] = copyNode(node)
		if vec, ok := s.vectors[node.ID]; ok {
			out[i].Embedding = append([]float32(nil), vec...)
		}
	}
	return out
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func copyNode(node *store.Node) *store.Node {
	out := *node
	out.Embedding = nil
	if node.Metadata != nil {
		out.Metadata = make(map[string]string, len(node.Metadata))
		for k, v := range node.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

func notFound(id string) error {
	return gmerr.Wrap(store.ErrNotFound, gmerr.CodeStoreNodeNotFound,
		"node "+id+" not found", gmerr.FieldNodeID(id))
}

func dimensionError(got, want int) error {
	return gmerr.Errorf(gmerr.CodeEmbedDimensionInvalid,
		"vector has %d dimensions, deployment expects %d", got, want)
}
