// ABOUTME: Typed WebSocket frames for the chat protocol
// ABOUTME: Inbound frames dispatch by type; outbound frames are closed structs

package chat

import (
	"encoding/json"

	"github.com/Yoni-Raich/copilot-sdk-ui/internal/store"
)

// Inbound frame types.
const (
	frameMessage  = "message"
	frameSetModel = "set_model"
	frameCancel   = "cancel"
	frameExecute  = "execute"
)

// inboundFrame is the union of all client frames; Type selects which
// fields are meaningful.
type inboundFrame struct {
	Type          string   `json:"type"`
	Content       string   `json:"content"`
	AttachmentIDs []string `json:"attachment_ids"`
	Model         string   `json:"model"`
	Command       string   `json:"command"`
}

// ToolCall records one tool invocation observed during a turn.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Status    string          `json:"status"`
	Result    string          `json:"result,omitempty"`
}

type userMessageFrame struct {
	Type    string         `json:"type"`
	Message *store.Message `json:"message"`
}

type modelSetFrame struct {
	Type  string `json:"type"`
	Model string `json:"model"`
}

type streamFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type turnFrame struct {
	Type string `json:"type"`
	Turn int    `json:"turn"`
}

type toolStartFrame struct {
	Type      string          `json:"type"`
	Tool      string          `json:"tool"`
	ToolID    string          `json:"tool_id"`
	Arguments json.RawMessage `json:"arguments"`
}

type toolCompleteFrame struct {
	Type   string `json:"type"`
	Tool   string `json:"tool"`
	ToolID string `json:"tool_id"`
	Result string `json:"result"`
}

type completeFrame struct {
	Type      string         `json:"type"`
	Message   *store.Message `json:"message"`
	ToolCalls []ToolCall     `json:"tool_calls"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type cancelledFrame struct {
	Type string `json:"type"`
}

type execOutputFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type execCompleteFrame struct {
	Type string `json:"type"`
	Code int    `json:"code"`
}
