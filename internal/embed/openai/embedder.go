// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package openai

import (
	"context"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/sigil-dev/graphmem/internal/embed"
	gmerr "github.com/sigil-dev/graphmem/pkg/errors"
)

// defaultTimeout bounds a single embedding call. A call exceeding it is
// reported the same way as any other provider failure.
const defaultTimeout = 15 * time.Second

// Compile-time interface check.
var _ embed.Embedder = (*Embedder)(nil)

// Embedder implements embed.Embedder over the OpenAI embeddings API.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	timeout    time.Duration
}

// Config holds the OpenAI embedder settings.
type Config struct {
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// New creates an OpenAI-backed embedder with a fixed output dimensionality.
func New(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, gmerr.New(gmerr.CodeConfigValidateInvalidValue, "openai embedder requires an API key")
	}
	if cfg.Dimensions <= 0 {
		return nil, gmerr.Errorf(gmerr.CodeConfigValidateInvalidValue,
			"openai embedder dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Embedder{
		client:     openai.NewClient(cfg.APIKey),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		timeout:    cfg.Timeout,
	}, nil
}

// Embed returns the embedding vector for text. Provider errors and
// timeouts surface with the embed.provider.unavailable code so callers can
// distinguish a failed capability from a node that simply has no vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rsp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      e.model,
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, gmerr.Wrapf(err, gmerr.CodeEmbedUnavailable, "creating embedding")
	}

	if len(rsp.Data) == 0 || len(rsp.Data[0].Embedding) == 0 {
		return nil, gmerr.New(gmerr.CodeEmbedUnavailable, "embedding response contained no vector")
	}

	vec := rsp.Data[0].Embedding
	if len(vec) != e.dimensions {
		return nil, gmerr.Errorf(gmerr.CodeEmbedDimensionInvalid,
			"provider returned %d dimensions, deployment expects %d", len(vec), e.dimensions)
	}

	return vec, nil
}

// Dimensions returns the fixed output dimensionality.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}
