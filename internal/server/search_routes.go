// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sigil-dev/graphmem/internal/govern"
	"github.com/sigil-dev/graphmem/internal/store"
)

type similarSearchInput struct {
	Body struct {
		NodeID         string `json:"node_id" minLength:"1" doc:"Anchor node identifier"`
		TopK           int    `json:"top_k,omitempty" doc:"Maximum results to return"`
		Type           string `json:"type,omitempty" doc:"Restrict results to this node type"`
		IncludeDetails bool   `json:"include_details,omitempty" doc:"Include content and metadata"`
	}
}

type textSearchInput struct {
	Body struct {
		Query          string `json:"query" minLength:"1" doc:"Query text to embed and rank against"`
		TopK           int    `json:"top_k,omitempty" doc:"Maximum results to return"`
		Type           string `json:"type,omitempty" doc:"Restrict results to this node type"`
		IncludeDetails bool   `json:"include_details,omitempty" doc:"Include content and metadata"`
	}
}

type searchOutput struct {
	Body govern.Page
}

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "search-similar",
		Method:      http.MethodPost,
		Path:        "/api/v1/search/similar",
		Summary:     "Find nodes nearest to an existing node",
		Tags:        []string{"search"},
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, s.handleSearchSimilar)

	huma.Register(s.api, huma.Operation{
		OperationID: "search-text",
		Method:      http.MethodPost,
		Path:        "/api/v1/search/text",
		Summary:     "Find nodes nearest to a query text",
		Tags:        []string{"search"},
		Errors:      []int{http.StatusBadRequest, http.StatusBadGateway},
	}, s.handleSearchText)
}

func (s *Server) handleSearchSimilar(ctx context.Context, input *similarSearchInput) (*searchOutput, error) {
	if s.engine == nil {
		return nil, huma.Error503ServiceUnavailable("search is not available")
	}

	topK := s.caps.ClampLimit(input.Body.TopK)
	hits, err := s.engine.SimilarToNode(ctx, input.Body.NodeID, topK, store.NearestFilter{Type: input.Body.Type})
	if err != nil {
		return nil, apiError(err, "searching by node")
	}

	return &searchOutput{Body: s.renderHits(hits, topK, input.Body.IncludeDetails)}, nil
}

func (s *Server) handleSearchText(ctx context.Context, input *textSearchInput) (*searchOutput, error) {
	if s.engine == nil {
		return nil, huma.Error503ServiceUnavailable("search is not available")
	}

	topK := s.caps.ClampLimit(input.Body.TopK)
	hits, err := s.engine.ByText(ctx, input.Body.Query, topK, store.NearestFilter{Type: input.Body.Type})
	if err != nil {
		return nil, apiError(err, "searching by text")
	}

	return &searchOutput{Body: s.renderHits(hits, topK, input.Body.IncludeDetails)}, nil
}

func (s *Server) renderHits(hits []store.ScoredNode, topK int, includeDetails bool) govern.Page {
	views := make([]govern.NodeView, 0, len(hits))
	for _, hit := range hits {
		views = append(views, s.caps.RenderScored(hit, includeDetails))
	}
	return s.caps.BuildPage(views, 0, topK)
}
