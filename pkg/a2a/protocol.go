// Package a2a implements the Agent-to-Agent (A2A) protocol objects used by
// the triage service: tasks, messages, artifacts, and the agent discovery
// card. Wire shapes follow the A2A JSON-RPC transport with camelCase field
// names and "kind" discriminators.
package a2a

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// TASK - Unit of Work
// ============================================================================

// TaskState represents the lifecycle state of a task.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
	TaskStateRejected      TaskState = "rejected"
)

// IsTerminal reports whether no further transitions are permitted.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateRejected:
		return true
	}
	return false
}

// Task is the stateful unit tracking one triage conversation. History is
// append-only; Artifacts are produced only on successful completion.
// Metadata holds bridge-private session state and carries no protocol
// semantics of its own.
type Task struct {
	ID        string         `json:"id"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	History   []Message      `json:"history"`
	Artifacts []Artifact     `json:"artifacts"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Kind      string         `json:"kind"`
}

// TaskStatus carries the current state, the timestamp of the last
// transition, and the most recent agent-authored message once one exists.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Timestamp string    `json:"timestamp"`
	Message   *Message  `json:"message,omitempty"`
}

// NewTask creates a task in the submitted state. A context id is generated
// when the caller did not supply one.
func NewTask(contextID string) *Task {
	if contextID == "" {
		contextID = uuid.New().String()
	}
	return &Task{
		ID:        uuid.New().String(),
		ContextID: contextID,
		Status: TaskStatus{
			State:     TaskStateSubmitted,
			Timestamp: Now(),
		},
		History:   make([]Message, 0),
		Artifacts: make([]Artifact, 0),
		Metadata:  make(map[string]any),
		Kind:      "task",
	}
}

// SetState transitions the task and refreshes the status timestamp.
func (t *Task) SetState(state TaskState) {
	t.Status.State = state
	t.Status.Timestamp = Now()
}

// AppendHistory adds a message to the task history.
func (t *Task) AppendHistory(msg Message) {
	t.History = append(t.History, msg)
}

// Now returns the protocol timestamp for status transitions.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// ============================================================================
// MESSAGE - Conversation Turns
// ============================================================================

// MessageRole identifies the author of a message.
type MessageRole string

const (
	MessageRoleUser  MessageRole = "user"
	MessageRoleAgent MessageRole = "agent"
)

// Message is one conversation turn, caller- or agent-authored.
type Message struct {
	Role      MessageRole `json:"role"`
	Parts     []Part      `json:"parts"`
	MessageID string      `json:"messageId"`
	TaskID    string      `json:"taskId,omitempty"`
	ContextID string      `json:"contextId,omitempty"`
	Kind      string      `json:"kind,omitempty"`
}

// NewAgentMessage creates an agent reply bound to a task.
func NewAgentMessage(taskID, contextID, text string) Message {
	return Message{
		Role:      MessageRoleAgent,
		Parts:     []Part{TextPart(text)},
		MessageID: uuid.New().String(),
		TaskID:    taskID,
		ContextID: contextID,
		Kind:      "message",
	}
}

// Text returns the concatenated content of the message's text parts.
func (m Message) Text() string {
	out := ""
	for _, p := range m.Parts {
		if p.Kind == PartKindText {
			out += p.Text
		}
	}
	return out
}

// ============================================================================
// ARTIFACT - Task Output
// ============================================================================

// Artifact is the structured output attached to a completed task.
type Artifact struct {
	ArtifactID  string `json:"artifactId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parts       []Part `json:"parts"`
}

// NewArtifact creates an artifact with a generated id.
func NewArtifact(name, description string, parts ...Part) Artifact {
	return Artifact{
		ArtifactID:  uuid.New().String(),
		Name:        name,
		Description: description,
		Parts:       parts,
	}
}
