package prompt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/yt-assistant/internal/ai"
)

func TestAsk_Order(t *testing.T) {
	b := NewBuilder(Instructions{})
	history := []ai.Message{
		{Role: ai.RoleUser, Content: "What is it about?"},
		{Role: ai.RoleAssistant, Content: "Cooking."},
	}

	msgs := b.Ask("T", history, "Which dish?")

	require.Len(t, msgs, 5)
	assert.Equal(t, ai.Message{Role: ai.RoleSystem, Content: DefaultInstructions.Ask}, msgs[0])
	assert.Equal(t, ai.Message{Role: ai.RoleUser, Content: "Transcript: T"}, msgs[1])
	assert.Equal(t, history, msgs[2:4])
	assert.Equal(t, ai.Message{Role: ai.RoleUser, Content: "Which dish?"}, msgs[4])
}

func TestAsk_DoesNotAliasHistory(t *testing.T) {
	b := NewBuilder(Instructions{})
	history := []ai.Message{{Role: ai.RoleUser, Content: "q1"}}

	msgs := b.Ask("T", history, "q2")
	msgs[2].Content = "changed"

	assert.Equal(t, "q1", history[0].Content)
}

func TestAction_EmbedsInstruction(t *testing.T) {
	b := NewBuilder(Instructions{})
	for action, instruction := range actionInstructions {
		msgs, err := b.Action("T", string(action))
		require.NoError(t, err, action)
		require.Len(t, msgs, 2)
		assert.Equal(t, ai.RoleSystem, msgs[0].Role)
		assert.Equal(t, DefaultInstructions.Analysis, msgs[0].Content)
		assert.Equal(t, "Transcript: T\n\nTask: "+instruction, msgs[1].Content)
	}
}

func TestAction_Invalid(t *testing.T) {
	b := NewBuilder(Instructions{})
	for _, name := range []string{"translate", "", "Summarize"} {
		msgs, err := b.Action("T", name)
		assert.Nil(t, msgs)

		var ie *InvalidActionError
		require.True(t, errors.As(err, &ie), name)
		assert.Equal(t, name, ie.Action)
		assert.Equal(t, "Invalid action", err.Error())
	}
}

func TestSuggest(t *testing.T) {
	b := NewBuilder(Instructions{Suggestion: "custom"})
	msgs := b.Suggest("T")

	require.Len(t, msgs, 2)
	assert.Equal(t, "custom", msgs[0].Content)
	assert.Equal(t, "Transcript: T\n\nTask: Generate 3-5 suggested questions about this video content.", msgs[1].Content)
}

func TestAction_EveryKnownActionBuilds(t *testing.T) {
	b := NewBuilder(Instructions{})
	for a, instruction := range actionInstructions {
		msgs, err := b.Action("T", string(a))
		require.NoError(t, err, a)
		assert.Contains(t, msgs[1].Content, instruction)
	}
	assert.Len(t, actionInstructions, 4)
}
