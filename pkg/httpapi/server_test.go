package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorboard/pkg/canvas"
	"tutorboard/pkg/checkpoint"
	"tutorboard/pkg/tutor"
)

type fakeRunner struct {
	result tutor.Result
	err    error

	lastThreadID string
	lastMessage  string
}

func (f *fakeRunner) Run(_ context.Context, threadID, message string) (tutor.Result, error) {
	f.lastThreadID = threadID
	f.lastMessage = message
	return f.result, f.err
}

type fakeHistory struct {
	checkpoints []checkpoint.Checkpoint
	err         error
}

func (f *fakeHistory) History(_ context.Context, _ string) ([]checkpoint.Checkpoint, error) {
	return f.checkpoints, f.err
}

func newTestServer(runner TurnRunner, history HistoryProvider) *httptest.Server {
	srv := NewServer(runner, history, nil)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	return httptest.NewServer(mux)
}

func TestChatTurn(t *testing.T) {
	runner := &fakeRunner{
		result: tutor.Result{
			TutorText: "## Explanation",
			CanvasActions: []canvas.Action{
				canvas.CreateGeo{ID: "ball", X: 100, Y: 100, Geo: "ellipse"},
			},
		},
	}
	ts := newTestServer(runner, &fakeHistory{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/chat", "application/json",
		strings.NewReader(`{"threadId":"t1","message":"Explain gravity"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ThreadID      string            `json:"threadId"`
		TutorText     string            `json:"tutorText"`
		CanvasActions []json.RawMessage `json:"canvasActions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "t1", body.ThreadID)
	assert.Equal(t, "## Explanation", body.TutorText)
	require.Len(t, body.CanvasActions, 1)
	assert.Contains(t, string(body.CanvasActions[0]), `"id":"ball"`)

	assert.Equal(t, "t1", runner.lastThreadID)
	assert.Equal(t, "Explain gravity", runner.lastMessage)
}

func TestChatMissingFields(t *testing.T) {
	ts := newTestServer(&fakeRunner{}, &fakeHistory{})
	defer ts.Close()

	for _, payload := range []string{
		`{"message":"no thread"}`,
		`{"threadId":"t1"}`,
		`not json`,
	} {
		resp, err := http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader(payload))
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "payload: %s", payload)
	}
}

func TestChatPipelineFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("explain stage: rate limited")}
	ts := newTestServer(runner, &fakeHistory{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/chat", "application/json",
		strings.NewReader(`{"threadId":"t1","message":"hi"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestCreateThread(t *testing.T) {
	ts := newTestServer(&fakeRunner{}, &fakeHistory{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/threads", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ThreadID string `json:"threadId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	_, err = uuid.Parse(body.ThreadID)
	assert.NoError(t, err, "thread ids are UUIDs")
}

func TestThreadHistory(t *testing.T) {
	history := &fakeHistory{
		checkpoints: []checkpoint.Checkpoint{
			{ID: 1, ThreadID: "t1", State: tutor.NewConversationState("t1")},
			{ID: 2, ThreadID: "t1", State: tutor.NewConversationState("t1")},
		},
	}
	ts := newTestServer(&fakeRunner{}, history)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/threads/t1/history")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ThreadID    string                  `json:"threadId"`
		Checkpoints []checkpoint.Checkpoint `json:"checkpoints"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "t1", body.ThreadID)
	assert.Len(t, body.Checkpoints, 2)
}

func TestThreadHistoryEmptyThread(t *testing.T) {
	ts := newTestServer(&fakeRunner{}, &fakeHistory{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/threads/unknown/history")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Checkpoints []checkpoint.Checkpoint `json:"checkpoints"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotNil(t, body.Checkpoints)
	assert.Empty(t, body.Checkpoints)
}

func TestBoardAccumulatesAcrossTurns(t *testing.T) {
	runner := &fakeRunner{
		result: tutor.Result{
			TutorText: "text",
			CanvasActions: []canvas.Action{
				canvas.CreateGeo{ID: "ball", X: 100, Y: 100, Geo: "ellipse"},
				canvas.CreateGeo{ID: "wall", X: 300, Y: 100, Geo: "rectangle"},
			},
		},
	}
	ts := newTestServer(runner, &fakeHistory{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/chat", "application/json",
		strings.NewReader(`{"threadId":"t1","message":"q"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/threads/t1/board")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ShapeCount int `json:"shapeCount"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.ShapeCount)

	// Another thread's board is independent.
	resp, err = http.Get(ts.URL + "/api/threads/t2/board")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body.ShapeCount = -1
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 0, body.ShapeCount)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(&fakeRunner{}, &fakeHistory{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(&fakeRunner{}, &fakeHistory{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/chat")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/threads")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
