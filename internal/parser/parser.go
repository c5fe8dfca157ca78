package parser

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/tmc/langchaingo/textsplitter"

	"youtube-rag/internal/models"
)

const (
	DefaultChunkSize    = 1000 // runes
	DefaultChunkOverlap = 200  // runes

	SplitterWindow    = "window"
	SplitterRecursive = "recursive"
)

// Splitter turns a transcript into passages.
type Splitter interface {
	Split(text string) ([]models.Passage, error)
}

type ParserConfig struct {
	ChunkSize    int
	ChunkOverlap int
	Kind         string
}

// NewSplitter returns the splitter named by kind, falling back to the window splitter.
func NewSplitter(kind string, chunkSize, chunkOverlap int) (Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, chunkOverlap)
	}
	if kind == "" {
		kind = SplitterWindow
	}
	if kind != SplitterWindow && kind != SplitterRecursive {
		return nil, fmt.Errorf("unsupported splitter: %s", kind)
	}
	return &ParserConfig{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap, Kind: kind}, nil
}

func (p *ParserConfig) Split(text string) ([]models.Passage, error) {
	var chunks []string
	var err error
	switch p.Kind {
	case SplitterRecursive:
		chunks, err = p.splitRecursive(text)
	default:
		chunks, err = chunkContent(text, p.ChunkSize, p.ChunkOverlap)
	}
	if err != nil {
		return nil, err
	}
	return toPassages(chunks), nil
}

// SplitTranscript splits text with the window splitter.
func SplitTranscript(text string, chunkSize, chunkOverlap int) ([]models.Passage, error) {
	chunks, err := chunkContent(text, chunkSize, chunkOverlap)
	if err != nil {
		return nil, err
	}
	return toPassages(chunks), nil
}

func (p *ParserConfig) splitRecursive(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(p.ChunkSize),
		textsplitter.WithChunkOverlap(p.ChunkOverlap),
	)
	chunks, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}
	return chunks, nil
}

func toPassages(chunks []string) []models.Passage {
	passages := make([]models.Passage, 0, len(chunks))
	for _, chunk := range chunks {
		passages = append(passages, models.Passage{
			Index:   len(passages),
			Content: chunk,
		})
	}
	return passages
}

// chunk content into windows of at most maxChars runes. Every window after the first starts
// exactly overlapChars runes before the end of the previous one.
func chunkContent(content string, maxChars, overlapChars int) ([]string, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", maxChars)
	}
	if overlapChars < 0 || overlapChars >= maxChars {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", maxChars, overlapChars)
	}

	runes := []rune(strings.TrimSpace(content))
	contentLen := len(runes)
	if contentLen == 0 {
		return nil, nil
	}
	if contentLen <= maxChars {
		return []string{string(runes)}, nil
	}

	var chunks []string
	start := 0
	for {
		end := min(start+maxChars, contentLen)

		// prefer a clean break within the last 10% of the window
		if end < contentLen {
			lookBack := maxChars / 10
			for i := end - 1; i >= end-lookBack && i > start+overlapChars; i-- {
				if isBreak(runes[i]) {
					end = i + 1
					break
				}
			}
		}

		chunks = append(chunks, string(runes[start:end]))
		if end >= contentLen {
			break
		}
		start = end - overlapChars
	}
	return chunks, nil
}

func isBreak(r rune) bool {
	return unicode.IsSpace(r) || r == '.' || r == '?' || r == '!' || r == ','
}

// Reassemble rebuilds the text split by the window splitter by dropping the leading
// overlapChars runes of every passage after the first.
func Reassemble(passages []models.Passage, overlapChars int) string {
	var content strings.Builder
	for i, p := range passages {
		if i == 0 {
			content.WriteString(p.Content)
			continue
		}
		runes := []rune(p.Content)
		if len(runes) > overlapChars {
			content.WriteString(string(runes[overlapChars:]))
		}
	}
	return content.String()
}
