// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/sigil-dev/graphmem/internal/store"
	gmerr "github.com/sigil-dev/graphmem/pkg/errors"
)

// UpsertVector writes the vector into the node's own row. The row is the
// vector record, so the operation is a single idempotent UPDATE.
func (s *Store) UpsertVector(ctx context.Context, nodeID string, vector []float32) error {
	if len(vector) != s.dimensions {
		return dimensionError(len(vector), s.dimensions)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE nodes SET embedding = $1 WHERE id = $2`,
		pgvector.NewVector(vector), nodeID,
	)
	if err != nil {
		return gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "upserting vector for node %s", nodeID)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "upserting vector for node %s", nodeID)
	}
	if affected == 0 {
		return notFound(nodeID)
	}
	return nil
}

// DeleteVector nulls the embedding column. No-op if already null or the
// node is unknown.
func (s *Store) DeleteVector(ctx context.Context, nodeID string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE nodes SET embedding = NULL WHERE id = $1`, nodeID,
	); err != nil {
		return gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "deleting vector for node %s", nodeID)
	}
	return nil
}

// HasVector reports whether the node's embedding column is populated.
func (s *Store) HasVector(ctx context.Context, nodeID string) (bool, error) {
	var has bool
	err := s.db.QueryRowContext(ctx,
		`SELECT embedding IS NOT NULL FROM nodes WHERE id = $1`, nodeID,
	).Scan(&has)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "checking vector for node %s", nodeID)
	}
	return has, nil
}

// QueryNearest delegates ranking to pgvector's <-> L2 operator with an
// explicit id tie-break, matching the auxiliary-table variant's ordering.
func (s *Store) QueryNearest(ctx context.Context, vector []float32, topK int, filter store.NearestFilter) ([]store.NearestHit, error) {
	if len(vector) != s.dimensions {
		return nil, dimensionError(len(vector), s.dimensions)
	}
	if topK <= 0 {
		return nil, gmerr.Errorf(gmerr.CodeStoreInvalidInput, "topK must be positive, got %d", topK)
	}

	var (
		qb   strings.Builder
		args []any
	)

	args = append(args, pgvector.NewVector(vector))
	qb.WriteString(`SELECT id, embedding <-> $1 AS distance
FROM nodes
WHERE embedding IS NOT NULL`)

	if filter.Type != "" {
		args = append(args, filter.Type)
		fmt.Fprintf(&qb, ` AND node_type = $%d`, len(args))
	}

	args = append(args, topK)
	fmt.Fprintf(&qb, ` ORDER BY embedding <-> $1, id LIMIT $%d`, len(args))

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

func dimensionError(got, want int) error {
	return gmerr.Errorf(gmerr.CodeEmbedDimensionInvalid,
		"vector has %d dimensions, deployment expects %d", got, want)
}
