package tutor

import (
	"context"
	"fmt"
	"time"

	"tutorboard/pkg/canvas"
	"tutorboard/pkg/llm"
	"tutorboard/pkg/logx"
)

// Pipeline stage names, used in logs and metrics labels.
const (
	StageExplain    = "explain"
	StageIllustrate = "illustrate"
)

// StateStore is the persistence capability the pipeline depends on.
// Implemented by the checkpoint package.
type StateStore interface {
	// LatestState returns the most recent persisted state for a thread,
	// or (nil, nil) when the thread has none.
	LatestState(ctx context.Context, threadID string) (*ConversationState, error)

	// SaveState appends a new checkpoint holding state.
	SaveState(ctx context.Context, threadID string, state ConversationState) error
}

// Recorder receives pipeline observations for metrics. Implementations
// must tolerate any label values.
type Recorder interface {
	ObserveStage(stage, model string, duration time.Duration, success bool)
	ObserveTokens(stage, direction, text string)
	ObserveTurn(status string)
}

// Stage binds one pipeline stage to a model client and its sampling
// parameters.
type Stage struct {
	Client      llm.Client
	MaxTokens   int
	Temperature float32
}

func (s Stage) request(messages []llm.Message) llm.CompletionRequest {
	req := llm.NewCompletionRequest(messages)
	if s.MaxTokens > 0 {
		req.MaxTokens = s.MaxTokens
	}
	if s.Temperature > 0 {
		req.Temperature = s.Temperature
	}
	return req
}

// Result is one completed turn.
type Result struct {
	TutorText     string
	CanvasActions []canvas.Action
	State         ConversationState
}

// Pipeline runs one tutoring turn as a fixed linear sequence: load the
// thread's state, Explain, Illustrate, checkpoint. There is no retry,
// no branching and no partial persistence; a stage failure aborts the
// turn and the thread's durable history is exactly what it was before.
type Pipeline struct {
	explain    Stage
	illustrate Stage
	store      StateStore
	recorder   Recorder
	logger     *logx.Logger
}

// NewPipeline creates a pipeline. recorder may be nil.
func NewPipeline(explain, illustrate Stage, store StateStore, recorder Recorder) *Pipeline {
	return &Pipeline{
		explain:    explain,
		illustrate: illustrate,
		store:      store,
		recorder:   recorder,
		logger:     logx.NewLogger("tutor"),
	}
}

// Run executes one turn for the thread. The returned error is the
// failing stage's error, wrapped with stage context; on error nothing
// has been persisted.
func (p *Pipeline) Run(ctx context.Context, threadID, message string) (Result, error) {
	state, err := p.loadState(ctx, threadID)
	if err != nil {
		p.observeTurn("failed")
		return Result{}, err
	}

	state = state.AppendMessages(llm.NewUserMessage(message))

	state, err = p.runExplain(ctx, state)
	if err != nil {
		p.observeTurn("failed")
		return Result{}, fmt.Errorf("explain stage: %w", err)
	}

	state, err = p.runIllustrate(ctx, state)
	if err != nil {
		p.observeTurn("failed")
		return Result{}, fmt.Errorf("illustrate stage: %w", err)
	}

	// Persist only after both stages succeeded. A turn is durable in
	// its entirety or not at all.
	if err := p.store.SaveState(ctx, threadID, state); err != nil {
		p.observeTurn("failed")
		return Result{}, fmt.Errorf("checkpoint: %w", err)
	}

	p.observeTurn("completed")
	p.logger.Info("turn completed for thread %s (%d messages)", threadID, len(state.Messages))

	return Result{
		TutorText:     state.TutorText,
		CanvasActions: canvas.ExtractActions(state.CanvasActionsRaw),
		State:         state,
	}, nil
}

func (p *Pipeline) loadState(ctx context.Context, threadID string) (ConversationState, error) {
	state, err := p.store.LatestState(ctx, threadID)
	if err != nil {
		return ConversationState{}, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	if state == nil {
		p.logger.Debug("thread %s has no history, starting fresh", threadID)
		return NewConversationState(threadID), nil
	}
	return *state, nil
}

// runExplain sends the system prompt plus the full message history to
// the tutor model and appends its reply to the history.
func (p *Pipeline) runExplain(ctx context.Context, state ConversationState) (ConversationState, error) {
	messages := make([]llm.Message, 0, len(state.Messages)+1)
	messages = append(messages, llm.NewSystemMessage(TutorSystemPrompt))
	messages = append(messages, state.Messages...)

	resp, err := p.complete(ctx, StageExplain, p.explain, messages)
	if err != nil {
		return ConversationState{}, err
	}

	return state.
		AppendMessages(llm.NewAssistantMessage(resp.Content)).
		WithTutorText(resp.Content), nil
}

// runIllustrate sends only the latest question and the fresh
// explanation to the illustrator model. The reply is stored raw; it is
// parsed into actions at the response boundary so a malformed payload
// never fails the turn.
func (p *Pipeline) runIllustrate(ctx context.Context, state ConversationState) (ConversationState, error) {
	prompt := illustratorTurnPrompt(state.LatestUserMessage(), state.TutorText)
	messages := []llm.Message{
		llm.NewSystemMessage(IllustratorSystemPrompt),
		llm.NewUserMessage(prompt),
	}

	resp, err := p.complete(ctx, StageIllustrate, p.illustrate, messages)
	if err != nil {
		return ConversationState{}, err
	}

	return state.WithCanvasActionsRaw(resp.Content), nil
}

func (p *Pipeline) complete(ctx context.Context, stageName string, stage Stage, messages []llm.Message) (llm.CompletionResponse, error) {
	model := stage.Client.GetModelName()
	start := time.Now()

	resp, err := stage.Client.Complete(ctx, stage.request(messages))
	duration := time.Since(start)

	if p.recorder != nil {
		p.recorder.ObserveStage(stageName, model, duration, err == nil)
		if err == nil {
			for _, m := range messages {
				p.recorder.ObserveTokens(stageName, "input", m.Content)
			}
			p.recorder.ObserveTokens(stageName, "output", resp.Content)
		}
	}

	if err != nil {
		p.logger.Warn("%s stage failed after %s (model %s): %v", stageName, duration.Round(time.Millisecond), model, err)
		return llm.CompletionResponse{}, err
	}

	p.logger.Debug("%s stage completed in %s (model %s, %d chars)", stageName, duration.Round(time.Millisecond), model, len(resp.Content))
	return resp, nil
}

func (p *Pipeline) observeTurn(status string) {
	if p.recorder != nil {
		p.recorder.ObserveTurn(status)
	}
}
