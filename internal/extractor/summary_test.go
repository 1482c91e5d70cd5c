package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeKeepsOriginalOrder(t *testing.T) {
	s := newFrequencySummarizer()
	text := "Robots assemble engines. The cafeteria serves lunch at noon. Robots weld engine frames. Engine assembly robots need calibration."

	out, err := s.Summarize(text, 3)
	require.NoError(t, err)

	sentences := []string{
		"Robots assemble engines.",
		"Robots weld engine frames.",
		"Engine assembly robots need calibration.",
	}
	last := -1
	for _, sent := range sentences {
		idx := strings.Index(out, sent)
		require.GreaterOrEqual(t, idx, 0, sent)
		assert.Greater(t, idx, last)
		last = idx
	}
	assert.NotContains(t, out, "cafeteria")
}

func TestSummarizeWithoutPunctuationReturnsTrimmedText(t *testing.T) {
	s := newFrequencySummarizer()
	out, err := s.Summarize("  just a fragment with no terminator  ", 3)
	require.NoError(t, err)
	assert.Equal(t, "just a fragment with no terminator", out)
}

func TestSummarizeShortTextReturnsAllSentences(t *testing.T) {
	s := newFrequencySummarizer()
	out, err := s.Summarize("One sentence here. Another one there.", 5)
	require.NoError(t, err)
	assert.Contains(t, out, "One sentence here.")
	assert.Contains(t, out, "Another one there.")
}
