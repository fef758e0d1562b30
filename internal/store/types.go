// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package store

import "time"

// --- Node types ---

// Node is an atomic knowledge-graph entity: typed free-text content plus
// an optional fixed-length embedding.
type Node struct {
	ID      string
	Type    string
	Label   string
	Content string
	// Metadata is a string-keyed mapping; insertion order is not preserved.
	Metadata map[string]string
	// Embedding is nil when no vector is stored for the node. When present
	// its length always equals the deployment-fixed dimensionality.
	Embedding []float32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Edge is a directed, labelled connection between two nodes.
type Edge struct {
	ID        string
	FromID    string
	ToID      string
	Relation  string
	CreatedAt time.Time
}

// CreateNode carries the caller-supplied fields for a new node.
type CreateNode struct {
	Type     string
	Label    string
	Content  string
	Metadata map[string]string
}

// UpdateNode carries a partial update. Nil pointers leave the field
// unchanged; a nil Metadata map leaves metadata unchanged.
type UpdateNode struct {
	Type     *string
	Label    *string
	Content  *string
	Metadata map[string]string
}

// --- Query options ---

// ListOpts provides pagination parameters for list operations.
type ListOpts struct {
	Limit  int
	Offset int
}

// NodeQuery specifies filters for listing nodes.
type NodeQuery struct {
	Type string
	ListOpts
}

// NearestFilter constrains a nearest-neighbor query.
type NearestFilter struct {
	Type string
}

// --- Result types ---

// NearestHit is a single result from a nearest-neighbor query.
// Distance is the L2 (Euclidean) distance to the query vector; lower is
// more similar, 0 is an exact match.
type NearestHit struct {
	NodeID   string
	Distance float64
}

// ScoredNode pairs a resolved node with its distance to the query vector.
type ScoredNode struct {
	Node     *Node
	Distance float64
}

// GraphMap is a bounded snapshot of nodes and the edges connecting them.
type GraphMap struct {
	Nodes []*Node
	Edges []*Edge
}
