// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sigil-dev/graphmem/internal/embed"
	"github.com/sigil-dev/graphmem/internal/store"
	gmerr "github.com/sigil-dev/graphmem/pkg/errors"
)

// Engine ranks nodes by vector distance over whichever backend variant is
// active. Ordering is the adapter contract (ascending distance, node-id
// tie-break), so the same inputs produce the same result sequence on every
// backend.
//
// Reads are side-effect-free and may run concurrently with writes; a search
// may miss an embedding written moments before.
type Engine struct {
	backend  store.Backend
	embedder embed.Embedder
	logger   *slog.Logger
}

// New creates a search engine. embedder may be nil, in which case ByText
// reports the embedding capability as unavailable.
func New(backend store.Backend, embedder embed.Embedder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		backend:  backend,
		embedder: embedder,
		logger:   logger,
	}
}

// SimilarToNode ranks nodes by distance to the stored vector of nodeID.
// An unknown node fails with NotFound; a node without a stored vector fails
// with the typed MissingEmbedding error, never a generic absence check.
func (e *Engine) SimilarToNode(ctx context.Context, nodeID string, topK int, filter store.NearestFilter) ([]store.ScoredNode, error) {
	node, err := e.backend.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	if node.Embedding == nil {
		return nil, gmerr.Wrap(store.ErrMissingEmbedding, gmerr.CodeSearchMissingEmbedding,
			"node has no stored vector", gmerr.FieldNodeID(nodeID))
	}

	return e.rank(ctx, node.Embedding, topK, filter)
}

// ByText embeds queryText and ranks nodes by distance to the result. A
// failed or timed-out embedding capability surfaces as EmbeddingUnavailable,
// distinct from the MissingEmbedding read-path condition.
func (e *Engine) ByText(ctx context.Context, queryText string, topK int, filter store.NearestFilter) ([]store.ScoredNode, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, gmerr.Wrap(store.ErrInvalidInput, gmerr.CodeStoreInvalidInput,
			"query text must not be empty")
	}
	if e.embedder == nil {
		return nil, gmerr.New(gmerr.CodeEmbedUnavailable, "no embedding capability configured")
	}

	vec, err := e.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, gmerr.Wrap(err, gmerr.CodeEmbedUnavailable, "embedding query text")
	}

	return e.rank(ctx, vec, topK, filter)
}

// rank runs the nearest-neighbor query and resolves hits to full nodes,
// preserving rank order. Fewer matches than topK, including none, is a
// shorter or empty result, never an error.
func (e *Engine) rank(ctx context.Context, vector []float32, topK int, filter store.NearestFilter) ([]store.ScoredNode, error) {
	if topK <= 0 {
		return nil, gmerr.Wrap(store.ErrInvalidInput, gmerr.CodeStoreInvalidInput,
			"topK must be positive")
	}

	hits, err := e.backend.QueryNearest(ctx, vector, topK, filter)
	if err != nil {
		return nil, err
	}

	results := make([]store.ScoredNode, 0, len(hits))
	for _, hit := range hits {
		node, err := e.backend.GetNode(ctx, hit.NodeID)
		if err != nil {
			// A hit can reference a node deleted between the ranking scan
			// and resolution; skip it rather than failing the whole query.
			if gmerr.IsNotFound(err) {
				e.logger.DebugContext(ctx, "skipping hit for concurrently deleted node",
					"node_id", hit.NodeID,
				)
				continue
			}
			return nil, err
		}
		results = append(results, store.ScoredNode{Node: node, Distance: hit.Distance})
	}

	return results, nil
}
