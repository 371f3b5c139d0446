package tutor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorboard/pkg/canvas"
	"tutorboard/pkg/llm"
)

// memStore is an in-memory StateStore that records every saved state in
// order, like the checkpoint store but without the database.
type memStore struct {
	checkpoints map[string][]ConversationState
	saveErr     error
}

func newMemStore() *memStore {
	return &memStore{checkpoints: make(map[string][]ConversationState)}
}

func (m *memStore) LatestState(_ context.Context, threadID string) (*ConversationState, error) {
	history := m.checkpoints[threadID]
	if len(history) == 0 {
		return nil, nil
	}
	state := history[len(history)-1]
	return &state, nil
}

func (m *memStore) SaveState(_ context.Context, threadID string, state ConversationState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.checkpoints[threadID] = append(m.checkpoints[threadID], state)
	return nil
}

const illustratorReply = `<canvas_actions>
[{"action":"create","type":"geo","id":"ball","props":{"x":100,"y":100,"geo":"ellipse","w":60,"h":60}}]
</canvas_actions>`

func newTestPipeline(tutorClient, illustratorClient llm.Client, store StateStore) *Pipeline {
	return NewPipeline(
		Stage{Client: tutorClient, MaxTokens: 2048, Temperature: 0.7},
		Stage{Client: illustratorClient, MaxTokens: 1024, Temperature: 0.3},
		store,
		nil,
	)
}

func TestPipelineTurn(t *testing.T) {
	tutorClient := llm.NewMockClient([]llm.CompletionResponse{
		{Content: "## Newton's Third Law\n\nEvery action has an equal and opposite reaction."},
	}, nil)
	illustratorClient := llm.NewMockClient([]llm.CompletionResponse{
		{Content: illustratorReply},
	}, nil)
	store := newMemStore()

	pipeline := newTestPipeline(tutorClient, illustratorClient, store)
	result, err := pipeline.Run(context.Background(), "thread-1", "Explain Newton's third law")
	require.NoError(t, err)

	assert.Contains(t, result.TutorText, "Newton's Third Law")
	require.Len(t, result.CanvasActions, 1)
	geo, ok := result.CanvasActions[0].(canvas.CreateGeo)
	require.True(t, ok)
	assert.Equal(t, "ball", geo.ID)

	// One checkpoint, holding the full turn.
	require.Len(t, store.checkpoints["thread-1"], 1)
	saved := store.checkpoints["thread-1"][0]
	require.Len(t, saved.Messages, 2)
	assert.Equal(t, llm.RoleUser, saved.Messages[0].Role)
	assert.Equal(t, "Explain Newton's third law", saved.Messages[0].Content)
	assert.Equal(t, llm.RoleAssistant, saved.Messages[1].Role)
	assert.Equal(t, illustratorReply, saved.CanvasActionsRaw)
}

func TestPipelineExplainSeesSystemPromptAndHistory(t *testing.T) {
	tutorClient := llm.NewMockClient([]llm.CompletionResponse{{Content: "answer"}}, nil)
	illustratorClient := llm.NewMockClient([]llm.CompletionResponse{{Content: illustratorReply}}, nil)
	store := newMemStore()

	pipeline := newTestPipeline(tutorClient, illustratorClient, store)
	_, err := pipeline.Run(context.Background(), "thread-1", "question")
	require.NoError(t, err)

	requests := tutorClient.Requests()
	require.Len(t, requests, 1)
	messages := requests[0].Messages
	require.Len(t, messages, 2)
	assert.Equal(t, llm.RoleSystem, messages[0].Role)
	assert.Equal(t, TutorSystemPrompt, messages[0].Content)
	assert.Equal(t, llm.RoleUser, messages[1].Role)
	assert.Equal(t, 2048, requests[0].MaxTokens)
	assert.Equal(t, float32(0.7), requests[0].Temperature)
}

func TestPipelineSecondTurnMessageOrder(t *testing.T) {
	tutorClient := llm.NewMockClient([]llm.CompletionResponse{
		{Content: "first answer"},
		{Content: "second answer"},
	}, nil)
	illustratorClient := llm.NewMockClient([]llm.CompletionResponse{
		{Content: illustratorReply},
		{Content: illustratorReply},
	}, nil)
	store := newMemStore()

	pipeline := newTestPipeline(tutorClient, illustratorClient, store)
	_, err := pipeline.Run(context.Background(), "thread-1", "first question")
	require.NoError(t, err)
	_, err = pipeline.Run(context.Background(), "thread-1", "second question")
	require.NoError(t, err)

	requests := tutorClient.Requests()
	require.Len(t, requests, 2)

	// The second Explain input carries the first turn's exchange in
	// original order, new question last.
	messages := requests[1].Messages
	require.Len(t, messages, 4)
	assert.Equal(t, llm.RoleSystem, messages[0].Role)
	assert.Equal(t, "first question", messages[1].Content)
	assert.Equal(t, "first answer", messages[2].Content)
	assert.Equal(t, "second question", messages[3].Content)

	require.Len(t, store.checkpoints["thread-1"], 2)
	assert.Len(t, store.checkpoints["thread-1"][1].Messages, 4)
}

func TestPipelineIllustratorSeesOnlyLatestTurn(t *testing.T) {
	tutorClient := llm.NewMockClient([]llm.CompletionResponse{
		{Content: "first answer"},
		{Content: "second answer"},
	}, nil)
	illustratorClient := llm.NewMockClient([]llm.CompletionResponse{
		{Content: illustratorReply},
		{Content: illustratorReply},
	}, nil)
	store := newMemStore()

	pipeline := newTestPipeline(tutorClient, illustratorClient, store)
	_, err := pipeline.Run(context.Background(), "thread-1", "first question")
	require.NoError(t, err)
	_, err = pipeline.Run(context.Background(), "thread-1", "second question")
	require.NoError(t, err)

	requests := illustratorClient.Requests()
	require.Len(t, requests, 2)

	messages := requests[1].Messages
	require.Len(t, messages, 2, "illustrator gets system prompt plus one composed message")
	assert.Equal(t, IllustratorSystemPrompt, messages[0].Content)
	assert.Contains(t, messages[1].Content, "STUDENT QUESTION: second question")
	assert.Contains(t, messages[1].Content, "second answer")
	assert.NotContains(t, messages[1].Content, "first question")
}

func TestPipelineExplainFailureNoCheckpoint(t *testing.T) {
	tutorClient := llm.NewMockClient(nil, []error{errors.New("rate limited")})
	illustratorClient := llm.NewMockClient([]llm.CompletionResponse{{Content: illustratorReply}}, nil)
	store := newMemStore()

	pipeline := newTestPipeline(tutorClient, illustratorClient, store)
	_, err := pipeline.Run(context.Background(), "thread-1", "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "explain stage")

	assert.Empty(t, store.checkpoints["thread-1"], "a failed turn persists nothing")
	assert.Empty(t, illustratorClient.Requests(), "illustrate never runs after a failed explain")
}

func TestPipelineIllustrateFailureNoCheckpoint(t *testing.T) {
	tutorClient := llm.NewMockClient([]llm.CompletionResponse{{Content: "answer"}}, nil)
	illustratorClient := llm.NewMockClient(nil, []error{errors.New("boom")})
	store := newMemStore()

	pipeline := newTestPipeline(tutorClient, illustratorClient, store)
	_, err := pipeline.Run(context.Background(), "thread-1", "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illustrate stage")

	assert.Empty(t, store.checkpoints["thread-1"], "a half-finished turn persists nothing")
}

func TestPipelineSaveFailurePropagates(t *testing.T) {
	tutorClient := llm.NewMockClient([]llm.CompletionResponse{{Content: "answer"}}, nil)
	illustratorClient := llm.NewMockClient([]llm.CompletionResponse{{Content: illustratorReply}}, nil)
	store := newMemStore()
	store.saveErr = fmt.Errorf("disk full")

	pipeline := newTestPipeline(tutorClient, illustratorClient, store)
	_, err := pipeline.Run(context.Background(), "thread-1", "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkpoint")
}

func TestPipelineMalformedIllustratorPayload(t *testing.T) {
	tutorClient := llm.NewMockClient([]llm.CompletionResponse{{Content: "answer"}}, nil)
	illustratorClient := llm.NewMockClient([]llm.CompletionResponse{
		{Content: "Sure! Here are some shapes without any block."},
	}, nil)
	store := newMemStore()

	pipeline := newTestPipeline(tutorClient, illustratorClient, store)
	result, err := pipeline.Run(context.Background(), "thread-1", "question")
	require.NoError(t, err, "a malformed diagram payload does not fail the turn")

	assert.Empty(t, result.CanvasActions)
	require.Len(t, store.checkpoints["thread-1"], 1)
	assert.Equal(t, "Sure! Here are some shapes without any block.",
		store.checkpoints["thread-1"][0].CanvasActionsRaw, "the raw payload is persisted as received")
}

func TestConversationStateReducers(t *testing.T) {
	state := NewConversationState("t1")
	assert.Equal(t, "t1", state.ThreadID)
	assert.Empty(t, state.LatestUserMessage())

	next := state.AppendMessages(llm.NewUserMessage("q1"), llm.NewAssistantMessage("a1"))
	assert.Empty(t, state.Messages, "reducers never mutate the receiver")
	require.Len(t, next.Messages, 2)
	assert.Equal(t, "q1", next.LatestUserMessage())

	next = next.AppendMessages(llm.NewUserMessage("q2"))
	assert.Equal(t, "q2", next.LatestUserMessage())

	next = next.WithTutorText("text").WithCanvasActionsRaw("raw")
	assert.Equal(t, "text", next.TutorText)
	assert.Equal(t, "raw", next.CanvasActionsRaw)
	assert.Len(t, next.Messages, 3)
}
