package rag

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"

	"youtube-rag/internal/chromemdb"
	"youtube-rag/internal/memory"
	"youtube-rag/internal/models"
)

// Stage names a step of the answer chain.
type Stage string

const (
	StageRetrieve Stage = "retrieve"
	StageHistory  Stage = "history"
	StageRender   Stage = "render"
	StageGenerate Stage = "generate"
	StageParse    Stage = "parse"
	StageMemory   Stage = "memory"
)

var (
	thinkRe = regexp.MustCompile(models.ThinkTag)

	ErrEmptyAnswer = errors.New("model returned an empty answer")
)

// GenerationError reports a failed answer. Memory is left unchanged when it is returned.
type GenerationError struct {
	Stage Stage
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("answer generation failed at %s: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Retriever returns the k passages most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]models.Passage, error)
}

// PromptInput fills the answer template.
type PromptInput struct {
	Context     string
	ChatHistory string
	Question    string
}

// Chain answers questions over one transcript: retrieve, render, generate, parse, remember.
type Chain struct {
	retriever Retriever
	model     llms.Model
	memory    *memory.Conversation
	template  prompts.PromptTemplate
	topK      int
}

type Option func(*Chain)

func WithTopK(k int) Option {
	return func(c *Chain) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithTemplate replaces the answer prompt. The template sees .context, .chat_history and .question.
func WithTemplate(tmpl string) Option {
	return func(c *Chain) {
		c.template = newTemplate(tmpl)
	}
}

func NewChain(retriever Retriever, model llms.Model, mem *memory.Conversation, opts ...Option) *Chain {
	c := &Chain{
		retriever: retriever,
		model:     model,
		memory:    mem,
		template:  newTemplate(models.AnswerPromptTemplate),
		topK:      chromemdb.DefaultTopK,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newTemplate(tmpl string) prompts.PromptTemplate {
	return prompts.PromptTemplate{
		Template:       tmpl,
		InputVariables: []string{"context", "chat_history", "question"},
		TemplateFormat: prompts.TemplateFormatGoTemplate,
	}
}

func (c *Chain) Memory() *memory.Conversation {
	return c.memory
}

// Ask answers question from the transcript and the conversation so far, then records the
// exchange. On failure nothing is recorded.
func (c *Chain) Ask(ctx context.Context, question string) (*models.AskResponse, error) {
	passages, err := c.retrieve(ctx, question)
	if err != nil {
		return nil, &GenerationError{Stage: StageRetrieve, Err: err}
	}

	history, err := c.memory.Render(ctx)
	if err != nil {
		return nil, &GenerationError{Stage: StageHistory, Err: err}
	}

	prompt, err := c.render(PromptInput{
		Context:     formatContext(passages),
		ChatHistory: history,
		Question:    question,
	})
	if err != nil {
		return nil, &GenerationError{Stage: StageRender, Err: err}
	}

	raw, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, &GenerationError{Stage: StageGenerate, Err: err}
	}

	answer, err := parse(raw)
	if err != nil {
		return nil, &GenerationError{Stage: StageParse, Err: err}
	}

	if err := c.memory.AppendExchange(ctx, question, answer); err != nil {
		return nil, &GenerationError{Stage: StageMemory, Err: err}
	}

	log.Debug().
		Int("passages", len(passages)).
		Int("prompt_len", len(prompt)).
		Int("turns", c.memory.Len()).
		Msg("Answered question")

	return &models.AskResponse{Question: question, Answer: answer, Sources: passages}, nil
}

func (c *Chain) retrieve(ctx context.Context, question string) ([]models.Passage, error) {
	return c.retriever.Retrieve(ctx, question, c.topK)
}

// formatContext joins passages in retrieval order.
func formatContext(passages []models.Passage) string {
	parts := make([]string, len(passages))
	for i, p := range passages {
		parts[i] = p.Content
	}
	return strings.Join(parts, models.ContextSeparator)
}

func (c *Chain) render(in PromptInput) (string, error) {
	return c.template.Format(map[string]any{
		"context":      in.Context,
		"chat_history": in.ChatHistory,
		"question":     in.Question,
	})
}

func (c *Chain) generate(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, c.model, prompt)
}

// parse strips reasoning blocks some models emit before the answer.
func parse(raw string) (string, error) {
	answer := strings.TrimSpace(thinkRe.ReplaceAllString(raw, ""))
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	return answer, nil
}
