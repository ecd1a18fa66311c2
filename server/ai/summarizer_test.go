package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTags(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []string
	}{
		{
			name:     "simple list",
			raw:      "python, api, optimization",
			expected: []string{"python", "api", "optimization"},
		},
		{
			name:     "normalizes case and hashes",
			raw:      "#Go, Redis,  PGVector ",
			expected: []string{"go", "redis", "pgvector"},
		},
		{
			name:     "caps at five",
			raw:      "a1, b2, c3, d4, e5, f6, g7",
			expected: []string{"a1", "b2", "c3", "d4", "e5"},
		},
		{
			name:     "drops empty and single-char tags",
			raw:      "go, , x, caching",
			expected: []string{"go", "caching"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseTags(tt.raw))
		})
	}
}

func TestDescribeSessionEmpty(t *testing.T) {
	s := NewSummarizer("test-key", "")

	description, err := s.DescribeSession(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "No memories yet in this session.", description)
}

func TestTruncate(t *testing.T) {
	short := "hello"
	assert.Equal(t, short, truncate(short))

	long := strings.Repeat("x", maxEmbedChars+100)
	assert.Len(t, truncate(long), maxEmbedChars)
}
