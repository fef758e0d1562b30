// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Graphmem Contributors

package embed_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sigil-dev/graphmem/internal/embed"
)

func TestCanonicalText(t *testing.T) {
	assert.Equal(t, "note\ngreeting\nhello", embed.CanonicalText("note", "greeting", "hello"))
}

func TestCanonicalText_EmptyContent(t *testing.T) {
	assert.Equal(t, "note\ngreeting\n", embed.CanonicalText("note", "greeting", ""))
}

func TestCanonicalText_Deterministic(t *testing.T) {
	a := embed.CanonicalText("note", "greeting", "hello")
	b := embed.CanonicalText("note", "greeting", "hello")
	assert.Equal(t, a, b, "same fields always embed the same text")
}
