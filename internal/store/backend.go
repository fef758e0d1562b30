// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package store

import "context"

// Backend is the full persistence contract a storage variant implements:
// node and edge rows plus the vector adapter. Each variant keeps node rows
// and vector records in lockstep: deleting a node removes its vector
// record (and incident edges) in the same transaction.
type Backend interface {
	VectorBackend

	InsertNode(ctx context.Context, node *Node) error
	// UpdateNode rewrites the mutable row fields by id. ErrNotFound when
	// the id is unknown. Vector state is untouched.
	UpdateNode(ctx context.Context, node *Node) error
	// GetNode returns the node with its embedding populated when one is
	// stored. ErrNotFound when the id is unknown.
	GetNode(ctx context.Context, id string) (*Node, error)
	DeleteNode(ctx context.Context, id string) error
	// ListNodes returns nodes ordered by creation time then id.
	ListNodes(ctx context.Context, query NodeQuery) ([]*Node, error)
	// ListRecent returns nodes ordered by most recent update first.
	ListRecent(ctx context.Context, opts ListOpts) ([]*Node, error)

	PutEdge(ctx context.Context, edge *Edge) error
	// ListEdges returns edges ordered by creation time then id.
	ListEdges(ctx context.Context, opts ListOpts) ([]*Edge, error)

	// Name identifies the backend variant ("sqlite", "postgres", "memory").
	Name() string
	// Dimensions is the deployment-fixed vector dimensionality.
	Dimensions() int
	Close() error
}
