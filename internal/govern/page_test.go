// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package govern_test

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/graphmem/internal/govern"
)

func testViews(n, contentBytes int) []govern.NodeView {
	views := make([]govern.NodeView, n)
	for i := range views {
		views[i] = govern.NodeView{
			ID:      fmt.Sprintf("node-%03d", i),
			Type:    "note",
			Label:   fmt.Sprintf("label %d", i),
			Content: strings.Repeat("x", contentBytes),
		}
	}
	return views
}

func TestBuildPage_UnderBudget(t *testing.T) {
	caps := govern.Default()
	views := testViews(5, 10)

	page := caps.BuildPage(views, 0, 20)

	assert.False(t, page.Truncated)
	assert.Len(t, page.Items, 5)
	assert.Equal(t, 5, page.Returned)
	assert.Nil(t, page.NextOffset)
	assert.Empty(t, page.TruncationNotice)
}

func TestBuildPage_TransportCut(t *testing.T) {
	caps := govern.Caps{TransportBytes: 2048}.WithDefaults()
	views := testViews(20, 200)

	page := caps.BuildPage(views, 0, 20)

	require.True(t, page.Truncated)
	assert.Less(t, len(page.Items), 20)
	assert.GreaterOrEqual(t, len(page.Items), 1)
	assert.Equal(t, len(page.Items), page.Returned)
	require.NotNil(t, page.NextOffset)
	assert.Equal(t, len(page.Items), *page.NextOffset)
	assert.Contains(t, page.TruncationNotice, "offset")
	assert.Positive(t, page.OriginalBytes)

	raw, err := json.Marshal(page)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(raw), caps.TransportBytes, "serialized page stays within the transport budget")
}

func TestBuildPage_PaginationCoversEverything(t *testing.T) {
	caps := govern.Caps{TransportBytes: 2048}.WithDefaults()
	views := testViews(30, 150)

	var seen []string
	offset := 0
	for offset < len(views) {
		page := caps.BuildPage(views[offset:], offset, 30)
		require.Positive(t, page.Returned, "every page makes progress")
		for _, item := range page.Items {
			seen = append(seen, item.ID)
		}
		if page.NextOffset == nil {
			offset += page.Returned
			break
		}
		require.Equal(t, offset+page.Returned, *page.NextOffset)
		offset = *page.NextOffset
	}

	require.Len(t, seen, len(views), "no item lost to truncation")
	for i, id := range seen {
		assert.Equal(t, views[i].ID, id, "no gaps or duplicates across pages")
	}
}

func TestBuildPage_OversizedSingleItemKept(t *testing.T) {
	caps := govern.Caps{TransportBytes: 1024, NodeContentBytes: 100000}.WithDefaults()
	views := testViews(3, 5000)

	page := caps.BuildPage(views, 0, 3)

	require.True(t, page.Truncated)
	assert.Len(t, page.Items, 1, "at least one item always returned")
	require.NotNil(t, page.NextOffset)
	assert.Equal(t, 1, *page.NextOffset)
}

func TestBuildGraphPage_UnderBudget(t *testing.T) {
	caps := govern.Default()
	nodes := testViews(3, 10)
	edges := []govern.EdgeView{{ID: "e-1", FromID: "node-000", ToID: "node-001", Relation: "links"}}

	page := caps.BuildGraphPage(nodes, edges)

	assert.False(t, page.Truncated)
	assert.Len(t, page.Nodes, 3)
	assert.Len(t, page.Edges, 1)
}

func TestBuildGraphPage_EdgesCutBeforeNodes(t *testing.T) {
	caps := govern.Caps{TransportBytes: 4096}.WithDefaults()
	nodes := testViews(10, 200)
	edges := make([]govern.EdgeView, 40)
	for i := range edges {
		edges[i] = govern.EdgeView{
			ID:       fmt.Sprintf("edge-%03d", i),
			FromID:   "node-000",
			ToID:     fmt.Sprintf("node-%03d", i%10),
			Relation: "links",
		}
	}

	page := caps.BuildGraphPage(nodes, edges)

	require.True(t, page.Truncated)
	assert.Len(t, page.Nodes, 10, "nodes survive while edges absorb the cut")
	assert.Less(t, len(page.Edges), 40)
	assert.NotEmpty(t, page.TruncationNotice)
}

func TestBuildGraphPage_NodesCutOnlyAfterEdgesGone(t *testing.T) {
	caps := govern.Caps{TransportBytes: 1536, NodeContentBytes: 100000}.WithDefaults()
	nodes := testViews(20, 500)
	edges := []govern.EdgeView{{ID: "e-1", FromID: "node-000", ToID: "node-001", Relation: "links"}}

	page := caps.BuildGraphPage(nodes, edges)

	require.True(t, page.Truncated)
	assert.Empty(t, page.Edges)
	assert.Less(t, len(page.Nodes), 20)
	assert.GreaterOrEqual(t, len(page.Nodes), 1)
}
