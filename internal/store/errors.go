// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package store

import "errors"

// Sentinel errors for store operations.
// These errors can be checked using errors.Is() for classification.
var (
	// ErrNotFound indicates the requested node does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMissingEmbedding indicates a similarity query was made against a
	// node that has no stored vector. This is a read-path condition and is
	// always reported explicitly, never inferred from a nil field.
	ErrMissingEmbedding = errors.New("missing embedding")

	// ErrInvalidInput indicates the input parameters are invalid or malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDatabase indicates a general database error occurred.
	// This is a catch-all for unexpected database failures.
	ErrDatabase = errors.New("database error")
)
