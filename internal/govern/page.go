// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package govern

import (
	"encoding/json"
	"fmt"
)

// pageOverhead reserves room for the page envelope fields when measuring
// items against the transport budget.
const pageOverhead = 512

// Page is a bounded, resumable slice of a result set. When the serialized
// aggregate would exceed the transport budget, Items is cut and the notice
// records the original size; the remainder is reachable by reissuing the
// call with NextOffset.
type Page struct {
	Items    []NodeView `json:"items"`
	Offset   int        `json:"offset" doc:"Offset this page was requested at"`
	Limit    int        `json:"limit" doc:"Effective per-call limit after clamping"`
	Returned int        `json:"returned" doc:"Number of items in this page"`
	// Truncated marks a transport-budget cut; OriginalBytes then records
	// the serialized size of the uncut item list.
	Truncated        bool   `json:"truncated,omitempty"`
	OriginalBytes    int    `json:"original_bytes,omitempty"`
	TruncationNotice string `json:"truncation_notice,omitempty"`
	NextOffset       *int   `json:"next_offset,omitempty" doc:"Offset to request the remainder at"`
}

// GraphPage is a bounded snapshot of nodes and edges. Under transport
// pressure edges are cut before nodes.
type GraphPage struct {
	Nodes            []NodeView `json:"nodes"`
	Edges            []EdgeView `json:"edges"`
	Truncated        bool       `json:"truncated,omitempty"`
	OriginalBytes    int        `json:"original_bytes,omitempty"`
	TruncationNotice string     `json:"truncation_notice,omitempty"`
}

// BuildPage applies the transport cap to items that already carry the
// per-node cap and the per-call count limit. At least one item is always
// kept when any exist, so pagination always makes progress.
func (c Caps) BuildPage(items []NodeView, offset, limit int) Page {
	page := Page{
		Items:  items,
		Offset: offset,
		Limit:  limit,
	}

	budget := c.TransportBytes - pageOverhead
	total, sizes := measure(items)

	if total > budget && len(items) > 1 {
		kept := 0
		used := 0
		for _, size := range sizes {
			if kept > 0 && used+size > budget {
				break
			}
			used += size
			kept++
		}

		next := offset + kept
		page.Items = items[:kept]
		page.Truncated = true
		page.OriginalBytes = total
		page.NextOffset = &next
		page.TruncationNotice = fmt.Sprintf(
			"result truncated: returning %d of %d items (%d bytes exceeds the %d byte transport budget); reissue with offset=%d for the remainder",
			kept, len(items), total, c.TransportBytes, next,
		)
	}

	page.Returned = len(page.Items)
	return page
}

// BuildGraphPage applies the transport cap to a graph snapshot.
func (c Caps) BuildGraphPage(nodes []NodeView, edges []EdgeView) GraphPage {
	page := GraphPage{Nodes: nodes, Edges: edges}

	budget := c.TransportBytes - pageOverhead
	nodeTotal, nodeSizes := measure(nodes)
	edgeTotal, edgeSizes := measure(edges)
	total := nodeTotal + edgeTotal

	if total <= budget {
		return page
	}

	page.Truncated = true
	page.OriginalBytes = total

	// Drop edges first; node identity survives longer than connectivity.
	keptEdges := len(edges)
	for keptEdges > 0 && nodeTotal+sum(edgeSizes[:keptEdges]) > budget {
		keptEdges--
	}
	page.Edges = edges[:keptEdges]

	keptNodes := len(nodes)
	if keptEdges == 0 {
		keptNodes = 0
		used := 0
		for _, size := range nodeSizes {
			if keptNodes > 0 && used+size > budget {
				break
			}
			used += size
			keptNodes++
		}
		page.Nodes = nodes[:keptNodes]
	}

	page.TruncationNotice = fmt.Sprintf(
		"graph truncated: returning %d of %d nodes and %d of %d edges (%d bytes exceeds the %d byte transport budget); use node and edge listings with explicit offsets for the remainder",
		keptNodes, len(nodes), keptEdges, len(edges), total, c.TransportBytes,
	)
	return page
}

// measure returns the total serialized size of items and each item's size.
// Views contain only marshallable fields, so errors leave a zero size.
func measure[T any](items []T) (int, []int) {
	sizes := make([]int, len(items))
	total := 0
	for i, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			continue
		}
		// +1 for the separating comma in the serialized array.
		sizes[i] = len(raw) + 1
		total += sizes[i]
	}
	return total, sizes
}

func sum(sizes []int) int {
	total := 0
	for _, size := range sizes {
		total += size
	}
	return total
}
