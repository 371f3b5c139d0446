package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryCreateClient(t *testing.T) {
	factory := NewFactory(map[string]Constructor{
		ProviderOpenAI: func(spec ClientSpec) (Client, error) {
			return NewMockClient([]CompletionResponse{{Content: spec.Model}}, nil), nil
		},
	})

	client, err := factory.CreateClient(ClientSpec{Provider: ProviderOpenAI, Model: "gpt-4o"})
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), NewCompletionRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", resp.Content)
}

func TestFactoryUnknownProvider(t *testing.T) {
	factory := NewFactory(nil)

	_, err := factory.CreateClient(ClientSpec{Provider: "carrier-pigeon"})
	require.Error(t, err)

	var unknownErr *UnknownProviderError
	require.True(t, errors.As(err, &unknownErr))
	assert.Equal(t, "carrier-pigeon", unknownErr.Provider)
}

func TestMockClientScriptedResponses(t *testing.T) {
	client := NewMockClient(
		[]CompletionResponse{{Content: "first"}, {Content: "second"}},
		[]error{errors.New("transient")},
	)

	_, err := client.Complete(context.Background(), NewCompletionRequest(nil))
	require.Error(t, err, "scripted errors are consumed first")

	resp, err := client.Complete(context.Background(), NewCompletionRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Content)

	resp, err = client.Complete(context.Background(), NewCompletionRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Content)

	assert.Len(t, client.Requests(), 3)
}

func TestNewCompletionRequestDefaults(t *testing.T) {
	req := NewCompletionRequest([]Message{NewUserMessage("hi")})
	assert.Equal(t, 4096, req.MaxTokens)
	assert.Equal(t, float32(0.7), req.Temperature)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, RoleUser, req.Messages[0].Role)
}
