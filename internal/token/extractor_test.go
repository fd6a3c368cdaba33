package token_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aksea/PangGuai-Web/internal/token"
)

func TestExtract_BareString(t *testing.T) {
	tok, ok := token.Extract(strings.Repeat("A", 25), token.DefaultMaxDepth)
	require.True(t, ok)
	assert.Equal(t, strings.Repeat("A", 25), tok)

	_, ok = token.Extract("too-short", token.DefaultMaxDepth)
	assert.False(t, ok)
}

func TestExtract_PriorityFieldBeforeSiblings(t *testing.T) {
	want := strings.Repeat("A", 25)
	decoy := strings.Repeat("Z", 40)
	payload := map[string]any{
		"data": map[string]any{
			"token": want,
			// A plausible-looking sibling must never shadow the
			// canonical field.
			"html": decoy,
		},
	}

	tok, ok := token.Extract(payload, token.DefaultMaxDepth)
	require.True(t, ok)
	assert.Equal(t, want, tok)
}

func TestExtract_PriorityFieldVariants(t *testing.T) {
	want := strings.Repeat("B", 30)
	for _, field := range []string{"token", "accessToken", "session_token", "sessionToken"} {
		tok, ok := token.Extract(map[string]any{field: want}, token.DefaultMaxDepth)
		require.True(t, ok, field)
		assert.Equal(t, want, tok, field)
	}
}

func TestExtract_SequenceFirstHitWins(t *testing.T) {
	first := strings.Repeat("C", 22)
	second := strings.Repeat("D", 22)
	payload := []any{"short", first, second}

	tok, ok := token.Extract(payload, token.DefaultMaxDepth)
	require.True(t, ok)
	assert.Equal(t, first, tok)
}

func TestExtract_DepthBound(t *testing.T) {
	want := strings.Repeat("E", 25)

	// Nested exactly at the reachable limit: four mappings deep.
	atLimit := any(want)
	for i := 0; i < 4; i++ {
		atLimit = map[string]any{"wrap": atLimit}
	}
	tok, ok := token.Extract(atLimit, token.DefaultMaxDepth)
	require.True(t, ok)
	assert.Equal(t, want, tok)

	// One wrap further must be invisible, however plausible the value.
	beyond := map[string]any{"wrap": atLimit}
	_, ok = token.Extract(beyond, token.DefaultMaxDepth)
	assert.False(t, ok)
}

func TestExtract_NonTokenShapes(t *testing.T) {
	_, ok := token.Extract(nil, token.DefaultMaxDepth)
	assert.False(t, ok)

	_, ok = token.Extract(42.0, token.DefaultMaxDepth)
	assert.False(t, ok)

	_, ok = token.Extract(map[string]any{"token": 12345}, token.DefaultMaxDepth)
	assert.False(t, ok)
}

func TestExtract_ZeroMaxDepthUsesDefault(t *testing.T) {
	want := strings.Repeat("F", 21)
	tok, ok := token.Extract(map[string]any{"data": map[string]any{"token": want}}, 0)
	require.True(t, ok)
	assert.Equal(t, want, tok)
}
