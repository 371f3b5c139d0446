package checkpoint

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorboard/pkg/llm"
	"tutorboard/pkg/tutor"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func turnState(threadID string, turns int) tutor.ConversationState {
	state := tutor.NewConversationState(threadID)
	for i := 0; i < turns; i++ {
		state = state.AppendMessages(
			llm.NewUserMessage("question"),
			llm.NewAssistantMessage("answer"),
		)
	}
	return state.WithTutorText("answer").WithCanvasActionsRaw("<canvas_actions>[]</canvas_actions>")
}

func TestStoreLatestEmptyThread(t *testing.T) {
	store := newTestStore(t)

	cp, err := store.Latest(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, cp, "an unknown thread has no latest checkpoint")

	state, err := store.LatestState(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestStoreAppendAndLatest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Append(ctx, "thread-1", turnState("thread-1", 1))
	require.NoError(t, err)
	second, err := store.Append(ctx, "thread-1", turnState("thread-1", 2))
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID, "checkpoint ids are monotonic per insertion order")

	latest, err := store.Latest(ctx, "thread-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
	assert.Len(t, latest.State.Messages, 4)
	assert.Equal(t, "answer", latest.State.TutorText)
}

func TestStoreHistoryOrderedOldestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for turns := 1; turns <= 3; turns++ {
		_, err := store.Append(ctx, "thread-1", turnState("thread-1", turns))
		require.NoError(t, err)
	}
	// Another thread's checkpoints must not leak in.
	_, err := store.Append(ctx, "thread-2", turnState("thread-2", 1))
	require.NoError(t, err)

	history, err := store.History(ctx, "thread-1")
	require.NoError(t, err)
	require.Len(t, history, 3)

	for i, cp := range history {
		assert.Equal(t, "thread-1", cp.ThreadID)
		assert.Len(t, cp.State.Messages, (i+1)*2)
		if i > 0 {
			assert.Greater(t, cp.ID, history[i-1].ID)
		}
	}

	history, err = store.History(ctx, "thread-3")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestStoreStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	original := tutor.NewConversationState("thread-1").
		AppendMessages(llm.NewUserMessage("Explain Newton's third law")).
		AppendMessages(llm.NewAssistantMessage("## Newton's Third Law")).
		WithTutorText("## Newton's Third Law").
		WithCanvasActionsRaw(`<canvas_actions>[{"action":"clear"}]</canvas_actions>`)

	require.NoError(t, store.SaveState(ctx, "thread-1", original))

	loaded, err := store.LatestState(ctx, "thread-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, original, *loaded)
}

func TestStoreReopenPreservesHistory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoints.db")
	ctx := context.Background()

	store, err := NewStore(path)
	require.NoError(t, err)
	_, err = store.Append(ctx, "thread-1", turnState("thread-1", 1))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	history, err := reopened.History(ctx, "thread-1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
