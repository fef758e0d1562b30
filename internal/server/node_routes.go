// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sigil-dev/graphmem/internal/govern"
	"github.com/sigil-dev/graphmem/internal/store"
	gmerr "github.com/sigil-dev/graphmem/pkg/errors"
)

type createNodeInput struct {
	Body struct {
		Type     string            `json:"type" minLength:"1" doc:"Node type"`
		Label    string            `json:"label" minLength:"1" doc:"Short display label"`
		Content  string            `json:"content,omitempty" doc:"Free-form node content"`
		Metadata map[string]string `json:"metadata,omitempty" doc:"Arbitrary key-value annotations"`
	}
}

type nodeOutput struct {
	Body govern.NodeView
}

type nodeIDInput struct {
	ID string `path:"id" doc:"Node identifier"`
}

type updateNodeInput struct {
	ID   string `path:"id" doc:"Node identifier"`
	Body struct {
		Type     *string           `json:"type,omitempty" doc:"New node type"`
		Label    *string           `json:"label,omitempty" doc:"New display label"`
		Content  *string           `json:"content,omitempty" doc:"New node content"`
		Metadata map[string]string `json:"metadata,omitempty" doc:"Replacement metadata"`
	}
}

type nodeActionOutput struct {
	Body struct {
		Status string `json:"status"`
		NodeID string `json:"node_id"`
	}
}

type listNodesInput struct {
	Type           string `query:"type" doc:"Filter by node type"`
	Limit          int    `query:"limit" doc:"Maximum nodes to return"`
	Offset         int    `query:"offset" minimum:"0" doc:"Pagination offset"`
	IncludeDetails bool   `query:"include_details" doc:"Include content and metadata"`
}

type listOpts struct {
	Limit          int  `query:"limit" doc:"Maximum nodes to return"`
	Offset         int  `query:"offset" minimum:"0" doc:"Pagination offset"`
	IncludeDetails bool `query:"include_details" doc:"Include content and metadata"`
}

type pageOutput struct {
	Body govern.Page
}

type graphOutput struct {
	Body govern.GraphPage
}

type putEdgeInput struct {
	Body struct {
		FromID   string `json:"from_id" minLength:"1" doc:"Source node identifier"`
		ToID     string `json:"to_id" minLength:"1" doc:"Target node identifier"`
		Relation string `json:"relation" minLength:"1" doc:"Relation name"`
	}
}

type edgeOutput struct {
	Body govern.EdgeView
}

func (s *Server) registerNodeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "create-node",
		Method:        http.MethodPost,
		Path:          "/api/v1/nodes",
		Summary:       "Create a node",
		Tags:          []string{"nodes"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, s.handleCreateNode)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-node",
		Method:      http.MethodGet,
		Path:        "/api/v1/nodes/{id}",
		Summary:     "Get node details",
		Tags:        []string{"nodes"},
		Errors:      []int{http.StatusNotFound},
	}, s.handleGetNode)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-node",
		Method:      http.MethodPatch,
		Path:        "/api/v1/nodes/{id}",
		Summary:     "Update node fields",
		Tags:        []string{"nodes"},
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, s.handleUpdateNode)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-node",
		Method:      http.MethodDelete,
		Path:        "/api/v1/nodes/{id}",
		Summary:     "Delete a node and its edges",
		Tags:        []string{"nodes"},
		Errors:      []int{http.StatusNotFound},
	}, s.handleDeleteNode)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-nodes",
		Method:      http.MethodGet,
		Path:        "/api/v1/nodes",
		Summary:     "List nodes",
		Tags:        []string{"nodes"},
		Errors:      []int{http.StatusBadRequest},
	}, s.handleListNodes)
}

func (s *Server) registerGraphRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "recent-history",
		Method:      http.MethodGet,
		Path:        "/api/v1/history",
		Summary:     "List recently updated nodes",
		Tags:        []string{"graph"},
	}, s.handleHistory)

	huma.Register(s.api, huma.Operation{
		OperationID: "graph-map",
		Method:      http.MethodGet,
		Path:        "/api/v1/graph",
		Summary:     "Map the node graph",
		Tags:        []string{"graph"},
	}, s.handleGraphMap)

	huma.Register(s.api, huma.Operation{
		OperationID:   "put-edge",
		Method:        http.MethodPost,
		Path:          "/api/v1/edges",
		Summary:       "Link two nodes",
		Tags:          []string{"graph"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, s.handlePutEdge)
}

func (s *Server) handleCreateNode(ctx context.Context, input *createNodeInput) (*nodeOutput, error) {
	node, err := s.nodes.Create(ctx, store.CreateNode{
		Type:     input.Body.Type,
		Label:    input.Body.Label,
		Content:  input.Body.Content,
		Metadata: input.Body.Metadata,
	})
	if err != nil {
		return nil, apiError(err, "creating node")
	}
	return &nodeOutput{Body: s.caps.RenderNode(node, true)}, nil
}

func (s *Server) handleGetNode(ctx context.Context, input *nodeIDInput) (*nodeOutput, error) {
	node, err := s.nodes.Get(ctx, input.ID)
	if err != nil {
		return nil, apiError(err, "getting node")
	}
	return &nodeOutput{Body: s.caps.RenderNode(node, true)}, nil
}

func (s *Server) handleUpdateNode(ctx context.Context, input *updateNodeInput) (*nodeOutput, error) {
	node, err := s.nodes.Update(ctx, input.ID, store.UpdateNode{
		Type:     input.Body.Type,
		Label:    input.Body.Label,
		Content:  input.Body.Content,
		Metadata: input.Body.Metadata,
	})
	if err != nil {
		return nil, apiError(err, "updating node")
	}
	return &nodeOutput{Body: s.caps.RenderNode(node, true)}, nil
}

func (s *Server) handleDeleteNode(ctx context.Context, input *nodeIDInput) (*nodeActionOutput, error) {
	if err := s.nodes.Delete(ctx, input.ID); err != nil {
		return nil, apiError(err, "deleting node")
	}

	out := &nodeActionOutput{}
	out.Body.Status = "deleted"
	out.Body.NodeID = input.ID
	return out, nil
}

func (s *Server) handleListNodes(ctx context.Context, input *listNodesInput) (*pageOutput, error) {
	limit := s.caps.ClampLimit(input.Limit)

	nodes, err := s.nodes.List(ctx, store.NodeQuery{
		Type:     input.Type,
		ListOpts: store.ListOpts{Limit: limit, Offset: input.Offset},
	})
	if err != nil {
		return nil, apiError(err, "listing nodes")
	}

	views := make([]govern.NodeView, 0, len(nodes))
	for _, node := range nodes {
		views = append(views, s.caps.RenderNode(node, input.IncludeDetails))
	}

	return &pageOutput{Body: s.caps.BuildPage(views, input.Offset, limit)}, nil
}

func (s *Server) handleHistory(ctx context.Context, input *listOpts) (*pageOutput, error) {
	limit := s.caps.ClampLimit(input.Limit)

	nodes, err := s.nodes.History(ctx, store.ListOpts{Limit: limit, Offset: input.Offset})
	if err != nil {
		return nil, apiError(err, "listing recent nodes")
	}

	views := make([]govern.NodeView, 0, len(nodes))
	for _, node := range nodes {
		views = append(views, s.caps.RenderNode(node, input.IncludeDetails))
	}

	return &pageOutput{Body: s.caps.BuildPage(views, input.Offset, limit)}, nil
}

func (s *Server) handleGraphMap(ctx context.Context, input *listOpts) (*graphOutput, error) {
	limit := s.caps.ClampLimit(input.Limit)

	graph, err := s.nodes.GraphMap(ctx, store.ListOpts{Limit: limit, Offset: input.Offset})
	if err != nil {
		return nil, apiError(err, "mapping graph")
	}

	nodeViews := make([]govern.NodeView, 0, len(graph.Nodes))
	for _, node := range graph.Nodes {
		nodeViews = append(nodeViews, s.caps.RenderNode(node, input.IncludeDetails))
	}
	edgeViews := make([]govern.EdgeView, 0, len(graph.Edges))
	for _, edge := range graph.Edges {
		edgeViews = append(edgeViews, govern.RenderEdge(edge))
	}

	return &graphOutput{Body: s.caps.BuildGraphPage(nodeViews, edgeViews)}, nil
}

func (s *Server) handlePutEdge(ctx context.Context, input *putEdgeInput) (*edgeOutput, error) {
	edge, err := s.nodes.PutEdge(ctx, input.Body.FromID, input.Body.ToID, input.Body.Relation)
	if err != nil {
		return nil, apiError(err, "linking nodes")
	}
	return &edgeOutput{Body: govern.RenderEdge(edge)}, nil
}

// apiError translates store and search errors to HTTP responses. Internal
// failures are logged and masked; client errors pass their message through.
func apiError(err error, context string) error {
	status := gmerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("internal error", "context", context, "error", err)
		return huma.Error500InternalServerError("internal server error")
	}
	return huma.NewError(status, err.Error())
}
