// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package store

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sigil-dev/graphmem/internal/embed"
	gmerr "github.com/sigil-dev/graphmem/pkg/errors"
)

// Nodes coordinates node CRUD with embedding generation over a backend.
// It is an explicit handle: constructed once at startup and passed to every
// caller, with no package-level state.
//
// Embedding generation is a blocking call to an external capability made
// synchronously on the write path. A generation failure (including timeout)
// never aborts the caller's write: the node persists without a vector and
// the failure is logged. Reads racing a write may miss an embedding written
// moments before; that staleness window is accepted.
type Nodes struct {
	backend  Backend
	embedder embed.Embedder
	logger   *slog.Logger
}

// NewNodes creates a node store over the given backend. embedder may be nil,
// in which case nodes are stored without vectors and similarity search only
// works against nodes that already carry one.
func NewNodes(backend Backend, embedder embed.Embedder, logger *slog.Logger) *Nodes {
	if logger == nil {
		logger = slog.Default()
	}
	return &Nodes{
		backend:  backend,
		embedder: embedder,
		logger:   logger,
	}
}

// Backend returns the underlying storage backend.
func (n *Nodes) Backend() Backend {
	return n.backend
}

// Create persists a new node, then attempts embedding generation from the
// canonical text of its type, label, and content. The row write commits
// regardless of the embedding outcome.
func (n *Nodes) Create(ctx context.Context, in CreateNode) (*Node, error) {
	if strings.TrimSpace(in.Type) == "" {
		return nil, gmerr.Wrap(ErrInvalidInput, gmerr.CodeStoreInvalidInput, "node type must not be empty")
	}
	if strings.TrimSpace(in.Label) == "" {
		return nil, gmerr.Wrap(ErrInvalidInput, gmerr.CodeStoreInvalidInput, "node label must not be empty")
	}

	now := time.Now().UTC()
	node := &Node{
		ID:        uuid.NewString(),
		Type:      in.Type,
		Label:     in.Label,
		Content:   in.Content,
		Metadata:  in.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := n.backend.InsertNode(ctx, node); err != nil {
		return nil, err
	}

	n.embedNode(ctx, node)

	return node, nil
}

// Update applies a partial update. The embedding is regenerated only when
// type, label, or content actually changed; metadata-only updates never
// touch the vector. Unknown ids fail with NotFound.
func (n *Nodes) Update(ctx context.Context, id string, in UpdateNode) (*Node, error) {
	node, err := n.backend.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}

	reembed := false
	if in.Type != nil && *in.Type != node.Type {
		if strings.TrimSpace(*in.Type) == "" {
			return nil, gmerr.Wrap(ErrInvalidInput, gmerr.CodeStoreInvalidInput, "node type must not be empty")
		}
		node.Type = *in.Type
		reembed = true
	}
	if in.Label != nil && *in.Label != node.Label {
		if strings.TrimSpace(*in.Label) == "" {
			return nil, gmerr.Wrap(ErrInvalidInput, gmerr.CodeStoreInvalidInput, "node label must not be empty")
		}
		node.Label = *in.Label
		reembed = true
	}
	if in.Content != nil && *in.Content != node.Content {
		node.Content = *in.Content
		reembed = true
	}
	if in.Metadata != nil {
		node.Metadata = in.Metadata
	}
	node.UpdatedAt = time.Now().UTC()

	if err := n.backend.UpdateNode(ctx, node); err != nil {
		return nil, err
	}

	if reembed {
		n.embedNode(ctx, node)
	}

	return node, nil
}

// Get returns a node by id, NotFound when absent.
func (n *Nodes) Get(ctx context.Context, id string) (*Node, error) {
	return n.backend.GetNode(ctx, id)
}

// Delete removes a node and, in the same transaction, its vector record and
// incident edges. A node without a vector deletes cleanly.
func (n *Nodes) Delete(ctx context.Context, id string) error {
	return n.backend.DeleteNode(ctx, id)
}

// List returns nodes matching the query in creation order.
func (n *Nodes) List(ctx context.Context, query NodeQuery) ([]*Node, error) {
	return n.backend.ListNodes(ctx, query)
}

// History returns nodes ordered by most recent update first.
func (n *Nodes) History(ctx context.Context, opts ListOpts) ([]*Node, error) {
	return n.backend.ListRecent(ctx, opts)
}

// PutEdge connects two existing nodes with a relation label.
func (n *Nodes) PutEdge(ctx context.Context, fromID, toID, relation string) (*Edge, error) {
	if fromID == "" || toID == "" || strings.TrimSpace(relation) == "" {
		return nil, gmerr.Wrap(ErrInvalidInput, gmerr.CodeStoreEdgeInvalid,
			"edge requires from, to, and a relation label")
	}

	edge := &Edge{
		ID:        uuid.NewString(),
		FromID:    fromID,
		ToID:      toID,
		Relation:  relation,
		CreatedAt: time.Now().UTC(),
	}
	if err := n.backend.PutEdge(ctx, edge); err != nil {
		return nil, err
	}
	return edge, nil
}

// GraphMap returns a bounded snapshot of nodes and edges.
func (n *Nodes) GraphMap(ctx context.Context, opts ListOpts) (*GraphMap, error) {
	nodes, err := n.backend.ListNodes(ctx, NodeQuery{ListOpts: opts})
	if err != nil {
		return nil, err
	}
	edges, err := n.backend.ListEdges(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &GraphMap{Nodes: nodes, Edges: edges}, nil
}

// embedNode generates and stores the node's vector under the soft-fail
// policy: any failure is logged and the node remains valid without a vector.
func (n *Nodes) embedNode(ctx context.Context, node *Node) {
	if n.embedder == nil {
		return
	}

	vec, err := n.embedder.Embed(ctx, embed.CanonicalText(node.Type, node.Label, node.Content))
	if err != nil {
		n.logger.WarnContext(ctx, "embedding generation failed; node persists without vector",
			"node_id", node.ID,
			"error", err,
		)
		return
	}

	if err := n.backend.UpsertVector(ctx, node.ID, vec); err != nil {
		n.logger.WarnContext(ctx, "storing embedding failed; node persists without vector",
			"node_id", node.ID,
			"backend", n.backend.Name(),
			"error", err,
		)
		return
	}

	node.Embedding = vec
}
