package parser

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transcript(words int) string {
	var sb strings.Builder
	for i := 0; i < words; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "word%d", i)
		if i%17 == 16 {
			sb.WriteByte('.')
		}
	}
	return sb.String()
}

func TestSplitTranscript_ShortText(t *testing.T) {
	passages, err := SplitTranscript("  hello there  ", DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "hello there", passages[0].Content)
	assert.Equal(t, 0, passages[0].Index)
}

func TestSplitTranscript_Empty(t *testing.T) {
	passages, err := SplitTranscript(" \n\t ", DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestSplitTranscript_Reassembles(t *testing.T) {
	for _, words := range []int{150, 400, 1200, 5000} {
		t.Run(fmt.Sprintf("%d words", words), func(t *testing.T) {
			text := transcript(words)
			passages, err := SplitTranscript(text, DefaultChunkSize, DefaultChunkOverlap)
			require.NoError(t, err)
			require.NotEmpty(t, passages)

			assert.Equal(t, text, Reassemble(passages, DefaultChunkOverlap))
			for i, p := range passages {
				assert.Equal(t, i, p.Index)
				assert.LessOrEqual(t, utf8.RuneCountInString(p.Content), DefaultChunkSize)
			}
		})
	}
}

func TestSplitTranscript_NeighboursOverlap(t *testing.T) {
	passages, err := SplitTranscript(transcript(2000), DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)
	require.Greater(t, len(passages), 2)

	for i := 1; i < len(passages); i++ {
		prev := []rune(passages[i-1].Content)
		cur := []rune(passages[i].Content)
		assert.Equal(t, string(prev[len(prev)-DefaultChunkOverlap:]), string(cur[:DefaultChunkOverlap]), "passage %d", i)
	}
}

func TestSplitTranscript_BreaksOnWhitespace(t *testing.T) {
	passages, err := SplitTranscript(transcript(2000), DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)

	for _, p := range passages[:len(passages)-1] {
		last, _ := utf8.DecodeLastRuneInString(p.Content)
		assert.True(t, isBreak(last), "passage %d ends with %q", p.Index, last)
	}
}

func TestSplitTranscript_Deterministic(t *testing.T) {
	text := transcript(3000)
	first, err := SplitTranscript(text, DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)
	second, err := SplitTranscript(text, DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSplitTranscript_MultiByte(t *testing.T) {
	text := strings.Repeat("привет мир 世界 ", 300)
	passages, err := SplitTranscript(text, 100, 20)
	require.NoError(t, err)

	for _, p := range passages {
		assert.True(t, utf8.ValidString(p.Content))
	}
	assert.Equal(t, strings.TrimSpace(text), Reassemble(passages, 20))
}

func TestSplitTranscript_NoBreakAvailable(t *testing.T) {
	text := strings.Repeat("x", 2500)
	passages, err := SplitTranscript(text, DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)

	require.Len(t, passages, 3)
	assert.Len(t, passages[0].Content, 1000)
	assert.Equal(t, text, Reassemble(passages, DefaultChunkOverlap))
}

func TestSplitTranscript_InvalidParameters(t *testing.T) {
	_, err := SplitTranscript("text", 0, 0)
	assert.Error(t, err)
	_, err = SplitTranscript("text", 100, 100)
	assert.Error(t, err)
	_, err = SplitTranscript("text", 100, -1)
	assert.Error(t, err)
}

func TestNewSplitter(t *testing.T) {
	_, err := NewSplitter("sentences", DefaultChunkSize, DefaultChunkOverlap)
	assert.Error(t, err)

	s, err := NewSplitter("", DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)
	passages, err := s.Split(transcript(600))
	require.NoError(t, err)
	assert.NotEmpty(t, passages)
}

func TestRecursiveSplitter(t *testing.T) {
	s, err := NewSplitter(SplitterRecursive, DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)

	passages, err := s.Split(transcript(1500))
	require.NoError(t, err)
	require.Greater(t, len(passages), 1)
	for i, p := range passages {
		assert.Equal(t, i, p.Index)
		assert.LessOrEqual(t, utf8.RuneCountInString(p.Content), DefaultChunkSize)
	}

	passages, err = s.Split("   ")
	require.NoError(t, err)
	assert.Empty(t, passages)
}
