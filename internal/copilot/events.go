// ABOUTME: Event types emitted by the copilot agent runtime during a turn
// ABOUTME: Defines the closed event set plus session and prompt structures

package copilot

import "encoding/json"

// EventType identifies what kind of agent event occurred.
type EventType string

const (
	EventTurnStart      EventType = "turn_start"
	EventTurnEnd        EventType = "turn_end"
	EventMessageDelta   EventType = "message_delta"
	EventReasoningDelta EventType = "reasoning_delta"
	EventToolStart      EventType = "tool_start"
	EventToolComplete   EventType = "tool_complete"
	EventIdle           EventType = "idle"
	EventError          EventType = "error"
	EventAborted        EventType = "aborted"
)

// Event is a single notification from the agent runtime for one session.
// Only the fields relevant to the event type are populated.
type Event struct {
	Type EventType `json:"type"`

	// Delta carries incremental text for message_delta and reasoning_delta.
	Delta string `json:"delta,omitempty"`

	// Tool call fields for tool_start and tool_complete.
	Tool      string          `json:"tool,omitempty"`
	CallID    string          `json:"call_id,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Result    string          `json:"result,omitempty"`

	// Message carries the error description for error events.
	Message string `json:"message,omitempty"`
}

// Terminal reports whether the event ends the current turn.
func (e Event) Terminal() bool {
	switch e.Type {
	case EventIdle, EventError, EventAborted:
		return true
	}
	return false
}

// ModelInfo describes a model the agent runtime can use.
type ModelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider,omitempty"`
}

// MCPServerConfig tells the runtime how to launch one MCP server.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// SessionConfig is the configuration for creating or resuming a session.
type SessionConfig struct {
	Model            string                     `json:"model,omitempty"`
	Streaming        bool                       `json:"streaming"`
	SessionID        string                     `json:"session_id,omitempty"`
	MCPServers       map[string]MCPServerConfig `json:"mcp_servers,omitempty"`
	SystemMessage    string                     `json:"system_message,omitempty"`
	SkillDirectories []string                   `json:"skill_directories,omitempty"`
}

// PromptAttachment references a local file to include with a prompt.
type PromptAttachment struct {
	Path     string `json:"path"`
	MimeType string `json:"mime_type,omitempty"`
}

// Prompt is the input for one agent turn.
type Prompt struct {
	Text        string             `json:"text"`
	Attachments []PromptAttachment `json:"attachments,omitempty"`
}
