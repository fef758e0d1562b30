// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package errors_test

import (
	stderrors "errors"
	"net/http"
	"testing"

	gmerr "github.com/sigil-dev/graphmem/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	err := gmerr.New(gmerr.CodeStoreNodeNotFound, "node missing")
	assert.Equal(t, gmerr.CodeStoreNodeNotFound, gmerr.CodeOf(err))

	assert.Equal(t, gmerr.Code(""), gmerr.CodeOf(nil))
	assert.Equal(t, gmerr.Code(""), gmerr.CodeOf(stderrors.New("plain")))
}

func TestWrapPreservesChain(t *testing.T) {
	inner := stderrors.New("disk full")
	err := gmerr.Wrap(inner, gmerr.CodeStoreDatabaseFailure, "inserting node")
	require.Error(t, err)

	assert.True(t, stderrors.Is(err, inner))
	assert.Equal(t, gmerr.CodeStoreDatabaseFailure, gmerr.CodeOf(err))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, gmerr.Wrap(nil, gmerr.CodeStoreDatabaseFailure, "no-op"))
	assert.NoError(t, gmerr.Wrapf(nil, gmerr.CodeStoreDatabaseFailure, "no-op"))
	assert.NoError(t, gmerr.With(nil))
}

func TestClassifiers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"not found", gmerr.New(gmerr.CodeStoreNodeNotFound, "x"), gmerr.IsNotFound},
		{"missing embedding", gmerr.New(gmerr.CodeSearchMissingEmbedding, "x"), gmerr.IsMissingEmbedding},
		{"unavailable", gmerr.New(gmerr.CodeEmbedUnavailable, "x"), gmerr.IsUnavailable},
		{"backend mismatch", gmerr.New(gmerr.CodeStoreBackendMismatch, "x"), gmerr.IsBackendMismatch},
		{"invalid input", gmerr.New(gmerr.CodeStoreInvalidInput, "x"), gmerr.IsInvalidInput},
		{"invalid dimension", gmerr.New(gmerr.CodeEmbedDimensionInvalid, "x"), gmerr.IsInvalidInput},
		{"payload too large", gmerr.New(gmerr.CodeGovernPayloadTooLarge, "x"), gmerr.IsPayloadTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
		})
	}
}

func TestClassifiersAreDisjoint(t *testing.T) {
	// The write-path and read-path absence conditions must never be
	// conflated: a node without a vector is not a capability failure.
	missing := gmerr.New(gmerr.CodeSearchMissingEmbedding, "no stored vector")
	unavailable := gmerr.New(gmerr.CodeEmbedUnavailable, "provider timeout")

	assert.True(t, gmerr.IsMissingEmbedding(missing))
	assert.False(t, gmerr.IsUnavailable(missing))

	assert.True(t, gmerr.IsUnavailable(unavailable))
	assert.False(t, gmerr.IsMissingEmbedding(unavailable))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{gmerr.New(gmerr.CodeStoreNodeNotFound, "x"), http.StatusNotFound},
		{gmerr.New(gmerr.CodeSearchMissingEmbedding, "x"), http.StatusConflict},
		{gmerr.New(gmerr.CodeStoreInvalidInput, "x"), http.StatusBadRequest},
		{gmerr.New(gmerr.CodeEmbedUnavailable, "x"), http.StatusBadGateway},
		{gmerr.New(gmerr.CodeStoreDatabaseFailure, "x"), http.StatusInternalServerError},
		{stderrors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, gmerr.HTTPStatus(tt.err), "for %v", tt.err)
	}
}

func TestFieldsOf(t *testing.T) {
	err := gmerr.New(gmerr.CodeStoreNodeNotFound, "node missing",
		gmerr.FieldNodeID("n-123"),
		gmerr.FieldBackend("sqlite"),
	)

	fields := gmerr.FieldsOf(err)
	assert.Equal(t, "n-123", fields["node_id"])
	assert.Equal(t, "sqlite", fields["backend"])
}
