// Package tutor implements the two-stage explanation pipeline: an
// Explain stage that answers the student in prose and an Illustrate
// stage that turns the answer into whiteboard action instructions.
package tutor

import (
	"tutorboard/pkg/llm"
)

// ConversationState is the durable state of one tutoring thread. It is
// the unit the checkpoint store serializes after every successful turn.
//
// Messages grows append-only across the life of a thread; TutorText and
// CanvasActionsRaw hold only the most recent turn's outputs and are
// replaced wholesale each turn.
type ConversationState struct {
	ThreadID         string        `json:"threadId"`
	Messages         []llm.Message `json:"messages"`
	TutorText        string        `json:"tutorText"`
	CanvasActionsRaw string        `json:"canvasActions"`
}

// NewConversationState creates the empty state for a fresh thread.
func NewConversationState(threadID string) ConversationState {
	return ConversationState{ThreadID: threadID}
}

// AppendMessages returns a copy of the state with msgs appended after
// the existing history. Existing entries are never modified or
// reordered.
func (s ConversationState) AppendMessages(msgs ...llm.Message) ConversationState {
	combined := make([]llm.Message, 0, len(s.Messages)+len(msgs))
	combined = append(combined, s.Messages...)
	combined = append(combined, msgs...)
	s.Messages = combined
	return s
}

// WithTutorText returns a copy of the state with the turn's explanation
// replaced.
func (s ConversationState) WithTutorText(text string) ConversationState {
	s.TutorText = text
	return s
}

// WithCanvasActionsRaw returns a copy of the state with the turn's raw
// illustrator payload replaced.
func (s ConversationState) WithCanvasActionsRaw(raw string) ConversationState {
	s.CanvasActionsRaw = raw
	return s
}

// LatestUserMessage returns the content of the most recent user message,
// or "" when the history has none.
func (s ConversationState) LatestUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == llm.RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}
