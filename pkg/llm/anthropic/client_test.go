package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorboard/pkg/llm"
)

func TestPrepareMessagesExtractsSystem(t *testing.T) {
	system, rest, err := prepareMessages([]llm.Message{
		llm.NewSystemMessage("be helpful"),
		llm.NewUserMessage("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "be helpful", system)
	require.Len(t, rest, 1)
	assert.Equal(t, llm.RoleUser, rest[0].Role)
}

func TestPrepareMessagesMergesConsecutiveUser(t *testing.T) {
	_, rest, err := prepareMessages([]llm.Message{
		llm.NewUserMessage("part one"),
		llm.NewUserMessage("part two"),
		llm.NewAssistantMessage("reply"),
		llm.NewUserMessage("followup"),
	})
	require.NoError(t, err)
	require.Len(t, rest, 3)
	assert.Equal(t, "part one\n\npart two", rest[0].Content)
	assert.Equal(t, llm.RoleAssistant, rest[1].Role)
	assert.Equal(t, "followup", rest[2].Content)
}

func TestPrepareMessagesAlternationErrors(t *testing.T) {
	_, _, err := prepareMessages(nil)
	assert.Error(t, err)

	_, _, err = prepareMessages([]llm.Message{llm.NewSystemMessage("only system")})
	assert.Error(t, err)

	// Conversation ending on assistant cannot be sent.
	_, _, err = prepareMessages([]llm.Message{
		llm.NewUserMessage("hi"),
		llm.NewAssistantMessage("hello"),
	})
	assert.Error(t, err)
}
