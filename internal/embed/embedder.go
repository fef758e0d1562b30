// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package embed

import (
	"context"
	"strings"
)

// Embedder produces a fixed-length vector for a piece of text. The
// dimensionality is fixed per deployment and every produced vector matches
// it. Implementations report failures and timeouts with the
// embed.provider.unavailable error code.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// CanonicalText derives the deterministic text a node is embedded from.
// The same (type, label, content) triple always yields the same text, so
// re-embedding is only needed when one of those fields changes.
func CanonicalText(nodeType, label, content string) string {
	var b strings.Builder
	b.WriteString(nodeType)
	b.WriteString("\n")
	b.WriteString(label)
	b.WriteString("\n")
	b.WriteString(content)
	return b.String()
}
