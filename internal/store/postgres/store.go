// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"go.nhat.io/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"

	"github.com/sigil-dev/graphmem/internal/store"
	gmerr "github.com/sigil-dev/graphmem/pkg/errors"
)

// driverName is the otel-instrumented postgres driver, registered once.
var driverName string

func init() {
	driver, err := otelsql.Register(
		"postgres",
		otelsql.TraceQueryWithoutArgs(),
		otelsql.TraceRowsClose(),
		otelsql.TraceRowsAffected(),
		otelsql.WithSystem(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		detail := "failed to register postgres driver with otel"
		slog.ErrorContext(context.Background(), detail, "error", err)
		panic(detail)
	}
	driverName = driver

	store.RegisterBackend("postgres", func(cfg store.BackendConfig) (store.Backend, error) {
		if cfg.DSN == "" {
			return nil, gmerr.New(gmerr.CodeConfigValidateInvalidValue,
				"postgres backend requires storage.dsn")
		}
		return New(cfg.DSN, cfg.Dimensions)
	})
}

// Compile-time interface check.
var _ store.Backend = (*Store)(nil)

// Store implements store.Backend on PostgreSQL with pgvector. The embedding
// lives in the node's own row under the native vector column type, so row
// and vector can never diverge; nearest-neighbor queries delegate to the
// engine's <-> distance operator and its index.
type Store struct {
	db         *sql.DB
	dimensions int
	logger     *slog.Logger
}

// New connects to dsn and initialises the pgvector extension, node and edge
// tables, and the vector index.
func New(dsn string, dimensions int) (*Store, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "opening postgres connection")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "pinging postgres")
	}

	if err := migrate(db, dimensions); err != nil {
		_ = db.Close()
		return nil, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "migrating graph tables")
	}

	return &Store{db: db, dimensions: dimensions, logger: slog.Default()}, nil
}

func migrate(db *sql.DB, dimensions int) error {
	if _, err := db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("creating vector extension: %w", err)
	}

	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS nodes (
	id         TEXT PRIMARY KEY,
	node_type  TEXT NOT NULL,
	label      TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   JSONB NOT NULL DEFAULT '{}',
	embedding  vector(%d),
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`, dimensions)
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("creating nodes table: %w", err)
	}

	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes (node_type)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_updated ON nodes (updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_embedding ON nodes USING hnsw (embedding vector_l2_ops)`,
		`CREATE TABLE IF NOT EXISTS edges (
	id         TEXT PRIMARY KEY,
	from_id    TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	to_id      TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	relation   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE(from_id, to_id, relation)
)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("applying migration: %w", err)
		}
	}

	return nil
}

func (s *Store) Name() string    { return "postgres" }
func (s *Store) Dimensions() int { return s.dimensions }

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) InsertNode(ctx context.Context, node *store.Node) error {
	metaJSON, err := marshalMetadata(node.Metadata)
	if err != nil {
		return err
	}

	const q = `INSERT INTO nodes (id, node_type, label, content, metadata, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = s.db.ExecContext(ctx, q,
		node.ID, node.Type, node.Label, node.Content, metaJSON,
		node.CreatedAt, node.UpdatedAt,
	)
	if err != nil {
		return gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "inserting node %s", node.ID)
	}
	return nil
}

func (s *Store) UpdateNode(ctx context.Context, node *store.Node) error {
	metaJSON, err := marshalMetadata(node.Metadata)
	if err != nil {
		return err
	}

	const q = `UPDATE nodes SET node_type = $1, label = $2, content = $3, metadata = $4, updated_at = $5
WHERE id = $6`

	res, err := s.db.ExecContext(ctx, q,
		node.Type, node.Label, node.Content, metaJSON, node.UpdatedAt, node.ID,
	)
	if err != nil {
		return gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "updating node %s", node.ID)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "updating node %s", node.ID)
	}
	if affected == 0 {
		return notFound(node.ID)
	}
	return nil
}

func (s *Store) GetNode(ctx context.Context, id string) (*store.Node, error) {
	const q = `SELECT id, node_type, label, content, metadata, embedding::text, created_at, updated_at
FROM nodes WHERE id = $1`

	node, err := scanNode(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "getting node %s", id)
	}
	return node, nil
}

// DeleteNode removes the node row. The embedding lives in the same row, so
// it goes with it; incident edges cascade through the foreign keys.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = $1`, id)
	if err != nil {
		return gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "deleting node %s", id)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "deleting node %s", id)
	}
	if affected == 0 {
		return notFound(id)
	}
	return nil
}

func (s *Store) ListNodes(ctx context.Context, query store.NodeQuery) ([]*store.Node, error) {
	var (
		qb   strings.Builder
		args []any
	)

	qb.WriteString(`SELECT id, node_type, label, content, metadata, embedding::text, created_at, updated_at
FROM nodes`)

	if query.Type != "" {
		args = append(args, query.Type)
		fmt.Fprintf(&qb, ` WHERE node_type = $%d`, len(args))
	}

	qb.WriteString(` ORDER BY created_at, id`)
	appendPaging(&qb, &args, query.ListOpts)

	return s.queryNodes(ctx, qb.String(), args...)
}

func (s *Store) ListRecent(ctx context.Context, opts store.ListOpts) ([]*store.Node, error) {
	var (
		qb   strings.Builder
		args []any
	)

	qb.WriteString(`SELECT id, node_type, label, content, metadata, embedding::text, created_at, updated_at
FROM nodes ORDER BY updated_at DESC, id`)
	appendPaging(&qb, &args, opts)

	return s.queryNodes(ctx, qb.String(), args...)
}

func (s *Store) PutEdge(ctx context.Context, edge *store.Edge) error {
	const q = `INSERT INTO edges (id, from_id, to_id, relation, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (from_id, to_id, relation) DO NOTHING`

	_, err := s.db.ExecContext(ctx, q,
		edge.ID, edge.FromID, edge.ToID, edge.Relation, edge.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return gmerr.Wrap(store.ErrNotFound, gmerr.CodeStoreNodeNotFound,
				"edge references a node that does not exist")
		}
		return gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "putting edge %s", edge.ID)
	}
	return nil
}

func (s *Store) ListEdges(ctx context.Context, opts store.ListOpts) ([]*store.Edge, error) {
	var (
		qb   strings.Builder
		args []any
	)

	qb.WriteString(`SELECT id, from_id, to_id, relation, created_at FROM edges ORDER BY created_at, id`)
	appendPaging(&qb, &args, opts)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "listing edges")
	}
	defer func() { _ = rows.Close() }()

	var edges []*store.Edge
	for rows.Next() {
		var edge store.Edge
		if err := rows.Scan(&edge.ID, &edge.FromID, &edge.ToID, &edge.Relation, &edge.CreatedAt); err != nil {
			return nil, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "scanning edge")
		}
		edges = append(edges, &edge)
	}
	if err := rows.Err(); err != nil {
		return nil, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "iterating edges")
	}

	return edges, nil
}

func (s *Store) queryNodes(ctx context.Context, q string, args ...any) ([]*store.Node, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "listing nodes")
	}
	defer func() { _ = rows.Close() }()

	var nodes []*store.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "scanning node")
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "iterating nodes")
	}

	return nodes, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*store.Node, error) {
	var (
		node    store.Node
		metaRaw []byte
		embStr  sql.NullString
	)

	if err := row.Scan(&node.ID, &node.Type, &node.Label, &node.Content,
		&metaRaw, &embStr, &node.CreatedAt, &node.UpdatedAt); err != nil {
		return nil, err
	}

	if len(metaRaw) > 0 && string(metaRaw) != "{}" {
		if err := json.Unmarshal(metaRaw, &node.Metadata); err != nil {
			return nil, err
		}
	}

	if embStr.Valid {
		var vec pgvector.Vector
		if err := vec.Scan(embStr.String); err != nil {
			return nil, err
		}
		node.Embedding = vec.Slice()
	}

	return &node, nil
}

func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if len(metadata) == 0 {
		return []byte("{}"), nil
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "marshalling node metadata")
	}
	return metaJSON, nil
}

func appendPaging(qb *strings.Builder, args *[]any, opts store.ListOpts) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	*args = append(*args, limit)
	fmt.Fprintf(qb, ` LIMIT $%d`, len(*args))

	if opts.Offset > 0 {
		*args = append(*args, opts.Offset)
		fmt.Fprintf(qb, ` OFFSET $%d`, len(*args))
	}
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "violates foreign key constraint")
}

func notFound(id string) error {
	return gmerr.Wrap(store.ErrNotFound, gmerr.CodeStoreNodeNotFound,
		"node "+id+" not found", gmerr.FieldNodeID(id))
}
