// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sigil-dev/graphmem/internal/store"
	gmerr "github.com/sigil-dev/graphmem/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.Backend = (*Store)(nil)

// Store implements store.Backend on SQLite. The engine has no native vector
// column type, so embeddings live in a separate node_vectors table keyed 1:1
// by node id; the schema's ON DELETE CASCADE keeps it in lockstep with the
// nodes table inside the same transaction as any node delete.
type Store struct {
	db         *sql.DB
	dimensions int
	logger     *slog.Logger
}

// New opens (or creates) a SQLite database at dbPath and initialises the
// node, edge, and auxiliary vector tables.
func New(dbPath string, dimensions int) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "opening sqlite db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "pinging sqlite db")
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "migrating graph tables")
	}

	return &Store{db: db, dimensions: dimensions, logger: slog.Default()}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS nodes (
	id         TEXT PRIMARY KEY,
	node_type  TEXT NOT NULL,
	label      TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(node_type);
CREATE INDEX IF NOT EXISTS idx_nodes_updated ON nodes(updated_at);

CREATE TABLE IF NOT EXISTS edges (
	id         TEXT PRIMARY KEY,
	from_id    TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	to_id      TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	relation   TEXT NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE(from_id, to_id, relation)
);

CREATE TABLE IF NOT EXISTS node_vectors (
	node_id   TEXT PRIMARY KEY REFERENCES nodes(id) ON DELETE CASCADE,
	embedding BLOB NOT NULL
);
`
	_, err := db.Exec(ddl)
	return err
}

func (s *Store) Name() string    { return "sqlite" }
func (s *Store) Dimensions() int { return s.dimensions }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) InsertNode(ctx context.Context, node *store.Node) error {
	metaJSON, err := marshalMetadata(node.Metadata)
	if err != nil {
		return err
	}

	const q = `INSERT INTO nodes (id, node_type, label, content, metadata, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, q,
		node.ID, node.Type, node.Label, node.Content, metaJSON,
		formatTime(node.CreatedAt), formatTime(node.UpdatedAt),
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

	const q = `UPDATE nodes SET node_type = ?, label = ?, content = ?, metadata = ?, updated_at = ?
WHERE id = ?`

	res, err := s.db.ExecContext(ctx, q,
		node.Type, node.Label, node.Content, metaJSON,
		formatTime(node.UpdatedAt), node.ID,
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
	const q = `SELECT n.id, n.node_type, n.label, n.content, n.metadata, n.created_at, n.updated_at, v.embedding
FROM nodes n
LEFT JOIN node_vectors v ON v.node_id = n.id
WHERE n.id = ?`

	node, err := scanNode(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "getting node %s", id)
	}
	return node, nil
}

// DeleteNode removes the node row; the foreign keys cascade the vector
// record and incident edges inside the same transaction.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id)
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

	qb.WriteString(`SELECT n.id, n.node_type, n.label, n.content, n.metadata, n.created_at, n.updated_at, v.embedding
FROM nodes n
LEFT JOIN node_vectors v ON v.node_id = n.id`)

	if query.Type != "" {
		qb.WriteString(` WHERE n.node_type = ?`)
		args = append(args, query.Type)
	}

	qb.WriteString(` ORDER BY n.created_at, n.id`)
	appendPaging(&qb, &args, query.ListOpts)

	return s.queryNodes(ctx, qb.String(), args...)
}

func (s *Store) ListRecent(ctx context.Context, opts store.ListOpts) ([]*store.Node, error) {
	var (
		qb   strings.Builder
		args []any
	)

	qb.WriteString(`SELECT n.id, n.node_type, n.label, n.content, n.metadata, n.created_at, n.updated_at, v.embedding
FROM nodes n
LEFT JOIN node_vectors v ON v.node_id = n.id
ORDER BY n.updated_at DESC, n.id`)
	appendPaging(&qb, &args, opts)

	return s.queryNodes(ctx, qb.String(), args...)
}

func (s *Store) PutEdge(ctx context.Context, edge *store.Edge) error {
	const q = `INSERT INTO edges (id, from_id, to_id, relation, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(from_id, to_id, relation) DO NOTHING`

	_, err := s.db.ExecContext(ctx, q,
		edge.ID, edge.FromID, edge.ToID, edge.Relation, formatTime(edge.CreatedAt),
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
		var (
			edge    store.Edge
			created string
		)
		if err := rows.Scan(&edge.ID, &edge.FromID, &edge.ToID, &edge.Relation, &created); err != nil {
			return nil, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "scanning edge")
		}
		edge.CreatedAt, err = parseTime(created)
		if err != nil {
			return nil, gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "parsing edge created_at")
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
		node             store.Node
		metaStr          string
		created, updated string
		blob             []byte
	)

	if err := row.Scan(&node.ID, &node.Type, &node.Label, &node.Content,
		&metaStr, &created, &updated, &blob); err != nil {
		return nil, err
	}

	if metaStr != "" && metaStr != "{}" {
		if err := json.Unmarshal([]byte(metaStr), &node.Metadata); err != nil {
			return nil, err
		}
	}

	var err error
	node.CreatedAt, err = parseTime(created)
	if err != nil {
		return nil, err
	}
	node.UpdatedAt, err = parseTime(updated)
	if err != nil {
		return nil, err
	}

	if len(blob) > 0 {
		node.Embedding = deserializeFloat32(blob)
	}

	return &node, nil
}

func marshalMetadata(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", gmerr.Wrapf(err, gmerr.CodeStoreDatabaseFailure, "marshalling node metadata")
	}
	return string(metaJSON), nil
}

func appendPaging(qb *strings.Builder, args *[]any, opts store.ListOpts) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	qb.WriteString(` LIMIT ?`)
	*args = append(*args, limit)

	if opts.Offset > 0 {
		qb.WriteString(` OFFSET ?`)
		*args = append(*args, opts.Offset)
	}
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func notFound(id string) error {
	return gmerr.Wrap(store.ErrNotFound, gmerr.CodeStoreNodeNotFound,
		"node "+id+" not found", gmerr.FieldNodeID(id))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
