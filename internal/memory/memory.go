package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/llms"
	lcmemory "github.com/tmc/langchaingo/memory"

	"youtube-rag/internal/models"
)

type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

// Turn is one human question or one assistant answer.
type Turn struct {
	Role Role   `json:"type"`
	Text string `json:"message"`
}

// Conversation is the ordered, append-only turn log of one session.
//
// Turns alternate human -> assistant. When maxTurns is positive the oldest exchanges are
// evicted in pairs once the log grows past it; zero keeps every turn.
type Conversation struct {
	mu       sync.RWMutex
	history  *lcmemory.ChatMessageHistory
	maxTurns int
}

func NewConversation(maxTurns int) *Conversation {
	if maxTurns < 0 {
		maxTurns = 0
	}
	// keep whole exchanges
	maxTurns -= maxTurns % 2
	return &Conversation{
		history:  lcmemory.NewChatMessageHistory(),
		maxTurns: maxTurns,
	}
}

// Append adds a single turn. The turn must continue the human/assistant alternation.
func (c *Conversation) Append(ctx context.Context, turn Turn) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs, err := c.history.Messages(ctx)
	if err != nil {
		return err
	}
	want := RoleHuman
	if len(msgs)%2 == 1 {
		want = RoleAssistant
	}
	if turn.Role != want {
		return fmt.Errorf("expected a %s turn, got %s", want, turn.Role)
	}
	if err := c.history.AddMessage(ctx, toMessage(turn)); err != nil {
		return err
	}
	return c.evict(ctx)
}

// AppendExchange records a question and its answer as one step.
func (c *Conversation) AppendExchange(ctx context.Context, question, answer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs, err := c.history.Messages(ctx)
	if err != nil {
		return err
	}
	if len(msgs)%2 == 1 {
		return fmt.Errorf("conversation ends with an unanswered question")
	}
	msgs = append(msgs, llms.HumanChatMessage{Content: question}, llms.AIChatMessage{Content: answer})
	if err := c.history.SetMessages(ctx, msgs); err != nil {
		return err
	}
	return c.evict(ctx)
}

func (c *Conversation) evict(ctx context.Context) error {
	if c.maxTurns == 0 {
		return nil
	}
	msgs, err := c.history.Messages(ctx)
	if err != nil {
		return err
	}
	if len(msgs) <= c.maxTurns {
		return nil
	}
	drop := len(msgs) - c.maxTurns
	drop += drop % 2
	return c.history.SetMessages(ctx, append([]llms.ChatMessage(nil), msgs[drop:]...))
}

// Turns returns a copy of the turn log in chronological order.
func (c *Conversation) Turns(ctx context.Context) ([]Turn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	msgs, err := c.history.Messages(ctx)
	if err != nil {
		return nil, err
	}
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, fromMessage(m))
	}
	return turns, nil
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msgs, _ := c.history.Messages(context.Background())
	return len(msgs)
}

func (c *Conversation) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Clear(ctx)
}

// Render formats the log as "Human: ..." / "Assistant: ..." lines for a prompt.
func (c *Conversation) Render(ctx context.Context) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	msgs, err := c.history.Messages(ctx)
	if err != nil {
		return "", err
	}
	return llms.GetBufferString(msgs, models.HumanPrefix, models.AssistantPrefix)
}

func toMessage(t Turn) llms.ChatMessage {
	if t.Role == RoleHuman {
		return llms.HumanChatMessage{Content: t.Text}
	}
	return llms.AIChatMessage{Content: t.Text}
}

func fromMessage(m llms.ChatMessage) Turn {
	role := RoleAssistant
	if m.GetType() == llms.ChatMessageTypeHuman {
		role = RoleHuman
	}
	return Turn{Role: role, Text: m.GetContent()}
}
