// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

// Package govern bounds every read result the store or search engine hands
// to a caller. Three caps compose, strictest wins: a per-node content byte
// budget, a per-call result-count limit with a hard ceiling, and a
// per-transport byte budget over the serialized aggregate. Truncation never
// destroys data: the cut remainder stays reachable through the same
// operation with an explicit offset.
package govern

import (
	"time"
	"unicode/utf8"

	"github.com/sigil-dev/graphmem/internal/store"
)

// Default cap values. Callers may raise the per-call limit explicitly but
// never past MaxResults.
const (
	DefaultNodeContentBytes = 5000
	DefaultResults          = 20
	MaxResults              = 100
	DefaultTransportBytes   = 49152
)

// Caps holds the three governance budgets for a deployment.
type Caps struct {
	NodeContentBytes int
	DefaultLimit     int
	MaxLimit         int
	TransportBytes   int
}

// Default returns the standard cap set.
func Default() Caps {
	return Caps{
		NodeContentBytes: DefaultNodeContentBytes,
		DefaultLimit:     DefaultResults,
		MaxLimit:         MaxResults,
		TransportBytes:   DefaultTransportBytes,
	}
}

// WithDefaults fills any unset budget with its default value.
func (c Caps) WithDefaults() Caps {
	d := Default()
	if c.NodeContentBytes <= 0 {
		c.NodeContentBytes = d.NodeContentBytes
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = d.DefaultLimit
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = d.MaxLimit
	}
	if c.TransportBytes <= 0 {
		c.TransportBytes = d.TransportBytes
	}
	return c
}

// ClampLimit applies the per-call cap: an unset request gets the
// conservative default, and no request exceeds the hard ceiling.
func (c Caps) ClampLimit(requested int) int {
	if requested <= 0 {
		return c.DefaultLimit
	}
	if requested > c.MaxLimit {
		return c.MaxLimit
	}
	return requested
}

// NodeView is a node serialized for output with the per-node cap applied.
// Identifiers, type, label, and the truncation markers are never truncated.
type NodeView struct {
	ID      string `json:"id" doc:"Node identifier"`
	Type    string `json:"type" doc:"Node type tag"`
	Label   string `json:"label" doc:"Short node name"`
	Content string `json:"content,omitempty" doc:"Node content, possibly truncated"`
	// ContentTruncated marks content cut to the per-node byte budget;
	// ContentOriginalBytes then records the true untruncated length.
	ContentTruncated     bool              `json:"content_truncated,omitempty" doc:"Whether content was cut to the per-node byte budget"`
	ContentOriginalBytes int               `json:"content_original_bytes,omitempty" doc:"Untruncated content length in bytes"`
	Metadata             map[string]string `json:"metadata,omitempty" doc:"Node metadata"`
	HasEmbedding         bool              `json:"has_embedding" doc:"Whether a vector is stored for the node"`
	Distance             *float64          `json:"distance,omitempty" doc:"L2 distance to the query vector"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// EdgeView is an edge serialized for output.
type EdgeView struct {
	ID        string    `json:"id"`
	FromID    string    `json:"from_id"`
	ToID      string    `json:"to_id"`
	Relation  string    `json:"relation"`
	CreatedAt time.Time `json:"created_at"`
}

// RenderNode serializes a node under the per-node cap. When includeDetails
// is false the content and metadata are omitted entirely (summary view).
func (c Caps) RenderNode(node *store.Node, includeDetails bool) NodeView {
	view := NodeView{
		ID:           node.ID,
		Type:         node.Type,
		Label:        node.Label,
		HasEmbedding: node.Embedding != nil,
		CreatedAt:    node.CreatedAt,
		UpdatedAt:    node.UpdatedAt,
	}

	if includeDetails {
		content, truncated := TruncateBytes(node.Content, c.NodeContentBytes)
		view.Content = content
		if truncated {
			view.ContentTruncated = true
			view.ContentOriginalBytes = len(node.Content)
		}
		view.Metadata = node.Metadata
	}

	return view
}

// RenderScored serializes a search result, carrying its distance.
func (c Caps) RenderScored(sn store.ScoredNode, includeDetails bool) NodeView {
	view := c.RenderNode(sn.Node, includeDetails)
	d := sn.Distance
	view.Distance = &d
	return view
}

// RenderEdge serializes an edge; edges carry no free text and need no cap.
func RenderEdge(edge *store.Edge) EdgeView {
	return EdgeView{
		ID:        edge.ID,
		FromID:    edge.FromID,
		ToID:      edge.ToID,
		Relation:  edge.Relation,
		CreatedAt: edge.CreatedAt,
	}
}

// TruncateBytes cuts s to at most budget bytes without splitting a rune.
// The reported flag is true only when something was actually cut.
func TruncateBytes(s string, budget int) (string, bool) {
	if len(s) <= budget {
		return s, false
	}
	cut := budget
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}
