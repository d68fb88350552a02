package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeBody(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "collapses newline runs to two",
			input:    "hello\n\n\n\n\nworld",
			expected: "hello\n\nworld",
		},
		{
			name:     "keeps double newlines",
			input:    "hello\n\nworld",
			expected: "hello\n\nworld",
		},
		{
			name:     "collapses spaces and tabs",
			input:    "hello  \t  world",
			expected: "hello world",
		},
		{
			name:     "trims surrounding whitespace",
			input:    "  \t hello \n",
			expected: "hello",
		},
		{
			name:     "empty stays empty",
			input:    "",
			expected: "",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got := NormalizeBody(testCase.input)
			require.Equal(t, testCase.expected, got)

			// normalization is idempotent
			require.Equal(t, got, NormalizeBody(got))
		})
	}
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "alicesmith", NormalizeName("  Alice   Smith\n"))
	require.True(t, MatchName("Alice Smith", []string{"alicesm"}))
	require.False(t, MatchName("Alice Smith", []string{"bob"}))
}
