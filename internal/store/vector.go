// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package store

import "context"

// VectorBackend is the adapter contract over embedding persistence. Both
// variants satisfy it and are interchangeable for every caller: the
// native-column backend stores the vector in the node's own row, the
// auxiliary-table backend in a synchronized side table.
type VectorBackend interface {
	// UpsertVector stores or replaces the vector for a node. Idempotent.
	UpsertVector(ctx context.Context, nodeID string, vector []float32) error

	// DeleteVector removes any stored vector for a node. Removing a vector
	// that does not exist is not an error.
	DeleteVector(ctx context.Context, nodeID string) error

	// QueryNearest returns up to topK hits ordered by ascending L2 distance,
	// ties broken by node id ascending. The ordering is identical across
	// backend variants for the same stored vectors and query.
	QueryNearest(ctx context.Context, vector []float32, topK int, filter NearestFilter) ([]NearestHit, error)

	// HasVector reports whether a vector is stored for the node. An unknown
	// node id reports false.
	HasVector(ctx context.Context, nodeID string) (bool, error)
}
