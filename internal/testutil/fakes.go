// Package testutil holds deterministic stand-ins for the external services used in tests.
package testutil

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// Keywords are the dimensions of FakeEmbedder vectors.
var Keywords = []string{"go", "python", "rust", "cooking", "music"}

// FakeEmbedder embeds text as keyword counts plus a small bias dimension, so texts sharing
// keywords are close under cosine similarity.
type FakeEmbedder struct {
	mu    sync.Mutex
	Err   error
	Calls int
}

func (e *FakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls++
	if e.Err != nil {
		return nil, e.Err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = Vector(text)
	}
	return vectors, nil
}

func (e *FakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func Vector(text string) []float32 {
	v := make([]float32, len(Keywords)+1)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,?!")
		for i, k := range Keywords {
			if word == k {
				v[i]++
			}
		}
	}
	v[len(Keywords)] = 0.1
	return v
}

// FakeModel is an llms.Model that records every prompt and replies from a script.
type FakeModel struct {
	mu      sync.Mutex
	Prompts []string
	// Reply builds the answer for a prompt. Nil replies "answer N".
	Reply func(prompt string) (string, error)
}

var ErrModelDown = errors.New("model unavailable")

func (m *FakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var prompt strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				prompt.WriteString(text.Text)
			}
		}
	}

	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt.String())
	n := len(m.Prompts)
	reply := m.Reply
	m.mu.Unlock()

	answer := "answer " + strconv.Itoa(n)
	if reply != nil {
		var err error
		answer, err = reply(prompt.String())
		if err != nil {
			return nil, err
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: answer}}}, nil
}

func (m *FakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *FakeModel) SetReply(reply func(prompt string) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reply = reply
}

func (m *FakeModel) PromptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

func (m *FakeModel) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Prompts) == 0 {
		return ""
	}
	return m.Prompts[len(m.Prompts)-1]
}

// FakeTranscripts serves transcripts from a map keyed by video id.
type FakeTranscripts struct {
	mu       sync.Mutex
	Texts    map[string]string
	Err      error
	Requests []string
}

func (f *FakeTranscripts) Fetch(ctx context.Context, videoID, lang string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, videoID)
	if f.Err != nil {
		return "", f.Err
	}
	text, ok := f.Texts[videoID]
	if !ok {
		return "", errors.New("no transcript for " + videoID)
	}
	return text, nil
}

func (f *FakeTranscripts) RequestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}

// Transcript is a multi-topic transcript long enough to split into several passages.
func Transcript() string {
	topics := []string{
		"Today we talk about go and why go makes concurrency simple. Goroutines in go are cheap.",
		"Next python comes up. People love python for data work and python notebooks.",
		"Then rust arrives with ownership. The rust borrow checker keeps memory safe in rust.",
		"Finally some cooking tips. Cooking pasta needs salt and cooking rice needs patience.",
	}
	var sb strings.Builder
	for _, topic := range topics {
		for i := 0; i < 12; i++ {
			sb.WriteString(topic)
			sb.WriteByte(' ')
		}
	}
	return strings.TrimSpace(sb.String())
}
