// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package sqlite

import (
	"context"
	"encoding/binary"
	"math"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/sigil-dev/graphmem/internal/store"
	gmerr "github.com/sigil-dev/graphmem/pkg/errors"
)

// UpsertVector stores or replaces the vector record for a node. The upsert
// and the owning-row check happen in one transaction so the auxiliary table
// never holds a record for a node that does not exist.
func (s *Store) UpsertVector(ctx context.Context, nodeID string, vector []float32) error {
	if len(vector) != s.dimensions {
		return dimensionError(len(vector), s.dimensions)
	}

	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "serializing embedding")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM nodes WHERE id = ?`, nodeID).Scan(&exists); err != nil {
		return gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "checking node %s", nodeID)
	}
	if exists == 0 {
		return notFound(nodeID)
	}

	const q = `INSERT INTO node_vectors (node_id, embedding) VALUES (?, ?)
ON CONFLICT(node_id) DO UPDATE SET embedding = excluded.embedding`
	if _, err := tx.ExecContext(ctx, q, nodeID, blob); err != nil {
		return gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "upserting vector for node %s", nodeID)
	}

	if err := tx.Commit(); err != nil {
		return gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "committing vector upsert")
	}
	return nil
}

// DeleteVector removes the vector record for a node. No-op if none exists.
func (s *Store) DeleteVector(ctx context.Context, nodeID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM node_vectors WHERE node_id = ?`, nodeID); err != nil {
		return gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "deleting vector for node %s", nodeID)
	}
	return nil
}

// HasVector reports whether a vector record exists for the node.
func (s *Store) HasVector(ctx context.Context, nodeID string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM node_vectors WHERE node_id = ?`, nodeID).Scan(&count); err != nil {
		return false, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "checking vector for node %s", nodeID)
	}
	return count > 0, nil
}

// QueryNearest ranks the auxiliary table by sqlite-vec's L2 distance with an
// explicit node-id tie-break, matching the native-column variant's ordering.
func (s *Store) QueryNearest(ctx context.Context, vector []float32, topK int, filter store.NearestFilter) ([]store.NearestHit, error) {
	if len(vector) != s.dimensions {
		return nil, dimensionError(len(vector), s.dimensions)
	}
	if topK <= 0 {
		return nil, gmerr.Errorf(gmerr.CodeStoreInvalidInput, "topK must be positive, got %d", topK)
	}

	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "serializing query vector")
	}

	var (
		qb   strings.Builder
		args []any
	)

	qb.WriteString(`SELECT v.node_id, vec_distance_L2(v.embedding, ?) AS distance
FROM node_vectors v
JOIN nodes n ON n.id = v.node_id`)
	args = append(args, blob)

	if filter.Type != "" {
		qb.WriteString(` WHERE n.node_type = ?`)
		args = append(args, filter.Type)
	}

	qb.WriteString(` ORDER BY distance, v.node_id LIMIT ?`)
	args = append(args, topK)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "querying nearest vectors")
	}
	defer func() { _ = rows.Close() }()

	var hits []store.NearestHit
	for rows.Next() {
		var hit store.NearestHit
		if err := rows.Scan(&hit.NodeID, &hit.Distance); err != nil {
			return nil, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "scanning nearest hit")
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "iterating nearest hits")
	}

	return hits, nil
}

// deserializeFloat32 decodes the little-endian float32 blob layout used by
// sqlite-vec's SerializeFloat32.
func deserializeFloat32(blob []byte) []float32 {
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}

func dimensionError(got, want int) error {
	return gmerr.Errorf(gmerr.CodeEmbedDimensionInvalid,
		"vector has %d dimensions, deployment expects %d", got, want)
}
