package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversation_StartsEmpty(t *testing.T) {
	c := NewConversation(0)
	turns, err := c.Turns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, turns)
	assert.Equal(t, 0, c.Len())

	rendered, err := c.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", rendered)
}

func TestConversation_AppendExchange(t *testing.T) {
	ctx := context.Background()
	c := NewConversation(0)

	for i := 0; i < 5; i++ {
		require.NoError(t, c.AppendExchange(ctx, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)))
	}

	turns, err := c.Turns(ctx)
	require.NoError(t, err)
	require.Len(t, turns, 10)
	for i, turn := range turns {
		if i%2 == 0 {
			assert.Equal(t, Turn{Role: RoleHuman, Text: fmt.Sprintf("q%d", i/2)}, turn)
		} else {
			assert.Equal(t, Turn{Role: RoleAssistant, Text: fmt.Sprintf("a%d", i/2)}, turn)
		}
	}
}

func TestConversation_AppendEnforcesAlternation(t *testing.T) {
	ctx := context.Background()
	c := NewConversation(0)

	assert.Error(t, c.Append(ctx, Turn{Role: RoleAssistant, Text: "unprompted"}))
	require.NoError(t, c.Append(ctx, Turn{Role: RoleHuman, Text: "hi"}))
	assert.Error(t, c.Append(ctx, Turn{Role: RoleHuman, Text: "hi again"}))
	assert.Error(t, c.AppendExchange(ctx, "q", "a"), "an open question blocks a new exchange")
	require.NoError(t, c.Append(ctx, Turn{Role: RoleAssistant, Text: "hello"}))
	assert.Equal(t, 2, c.Len())
}

func TestConversation_Render(t *testing.T) {
	ctx := context.Background()
	c := NewConversation(0)
	require.NoError(t, c.AppendExchange(ctx, "What is this video about?", "It is about Go."))

	rendered, err := c.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Human: What is this video about?\nAssistant: It is about Go.", rendered)
}

func TestConversation_Clear(t *testing.T) {
	ctx := context.Background()
	c := NewConversation(0)
	require.NoError(t, c.AppendExchange(ctx, "q", "a"))
	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Len())

	require.NoError(t, c.AppendExchange(ctx, "q2", "a2"))
	assert.Equal(t, 2, c.Len())
}

func TestConversation_EvictsOldestPairs(t *testing.T) {
	ctx := context.Background()
	c := NewConversation(4)

	for i := 0; i < 4; i++ {
		require.NoError(t, c.AppendExchange(ctx, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)))
	}

	turns, err := c.Turns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Turn{
		{Role: RoleHuman, Text: "q2"},
		{Role: RoleAssistant, Text: "a2"},
		{Role: RoleHuman, Text: "q3"},
		{Role: RoleAssistant, Text: "a3"},
	}, turns)
}

func TestConversation_OddCapRoundsDown(t *testing.T) {
	ctx := context.Background()
	c := NewConversation(3)

	require.NoError(t, c.AppendExchange(ctx, "q0", "a0"))
	require.NoError(t, c.AppendExchange(ctx, "q1", "a1"))

	turns, err := c.Turns(ctx)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, RoleHuman, turns[0].Role)
	assert.Equal(t, "q1", turns[0].Text)
}

func TestConversation_EvictionKeepsAlternationWithSingleTurns(t *testing.T) {
	ctx := context.Background()
	c := NewConversation(2)

	require.NoError(t, c.Append(ctx, Turn{Role: RoleHuman, Text: "q0"}))
	require.NoError(t, c.Append(ctx, Turn{Role: RoleAssistant, Text: "a0"}))
	require.NoError(t, c.Append(ctx, Turn{Role: RoleHuman, Text: "q1"}))

	turns, err := c.Turns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Turn{{Role: RoleHuman, Text: "q1"}}, turns)

	require.NoError(t, c.Append(ctx, Turn{Role: RoleAssistant, Text: "a1"}))
	assert.Equal(t, 2, c.Len())
}

func TestConversation_TurnsReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := NewConversation(0)
	require.NoError(t, c.AppendExchange(ctx, "q", "a"))

	turns, err := c.Turns(ctx)
	require.NoError(t, err)
	turns[0].Text = "changed"

	again, err := c.Turns(ctx)
	require.NoError(t, err)
	assert.Equal(t, "q", again[0].Text)
}

func TestConversation_ConcurrentExchangesStayPaired(t *testing.T) {
	ctx := context.Background()
	c := NewConversation(0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.AppendExchange(ctx, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)))
		}(i)
	}
	wg.Wait()

	turns, err := c.Turns(ctx)
	require.NoError(t, err)
	require.Len(t, turns, 40)
	for i := 0; i < len(turns); i += 2 {
		assert.Equal(t, RoleHuman, turns[i].Role)
		assert.Equal(t, RoleAssistant, turns[i+1].Role)
		assert.Equal(t, "a"+turns[i].Text[1:], turns[i+1].Text)
	}
}
