// ABOUTME: Store interface and data types for copilot-ui persistence
// ABOUTME: Defines Session, Message, Attachment, MCPServer, Plan and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Message roles. Closed set.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Plan statuses. Closed set.
const (
	PlanStatusDraft     = "draft"
	PlanStatusActive    = "active"
	PlanStatusCompleted = "completed"
)

// Session represents a chat session with its ordered message history.
// Message order is insertion order and is immutable once appended.
type Session struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Messages  []*Message `json:"messages"`
	Workspace string     `json:"workspace"`
	Model     string     `json:"model"`
	// AgentSessionID is the resumable handle into the agent runtime, if one
	// has been established. Live handles themselves are never persisted.
	AgentSessionID string    `json:"copilot_session_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Message is a single chat message. Immutable after creation.
type Message struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"-"`
	Role          string    `json:"role"`
	Content       string    `json:"content"`
	AttachmentIDs []string  `json:"attachment_ids,omitempty"`
	CreatedAt     time.Time `json:"timestamp"`
}

// SessionSpec carries the fields for creating a session.
type SessionSpec struct {
	ID        string // optional; generated when empty
	Name      string
	Workspace string
	Model     string
}

// SessionSummary is the listing view of a session.
type SessionSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Workspace    string    `json:"workspace"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	Model        string    `json:"model"`
}

// Attachment is an uploaded file owned by a session.
type Attachment struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"session_id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	Path             string    `json:"path"`
	Size             int64     `json:"size"`
	MimeType         string    `json:"mime_type"`
	CreatedAt        time.Time `json:"created_at"`
}

// MCPServer is a configured MCP tool-provider process.
type MCPServer struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Command   string            `json:"command"`
	Args      []string          `json:"args"`
	Env       map[string]string `json:"env"`
	Enabled   bool              `json:"enabled"`
	CreatedAt time.Time         `json:"-"`
}

// Status derives the server status from the enabled flag.
func (m *MCPServer) Status() string {
	if m.Enabled {
		return "running"
	}
	return "stopped"
}

// MCPServerUpdate carries partial-update fields for an MCP server.
// Nil fields are left unchanged.
type MCPServerUpdate struct {
	Name    *string            `json:"name"`
	Command *string            `json:"command"`
	Args    *[]string          `json:"args"`
	Env     *map[string]string `json:"env"`
	Enabled *bool              `json:"enabled"`
}

// Plan is a session-scoped plan document.
type Plan struct {
	ID        string    `json:"id"`
	SessionID string    `json:"-"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the interface for copilot-ui persistence
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, spec SessionSpec) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	SaveSession(ctx context.Context, session *Session) error
	DeleteSession(ctx context.Context, id string) (bool, error)
	ListSessions(ctx context.Context) ([]*SessionSummary, error)

	// Attachments
	SaveAttachment(ctx context.Context, att *Attachment) error
	GetAttachment(ctx context.Context, id string) (*Attachment, error)
	ListAttachmentsBySession(ctx context.Context, sessionID string) ([]*Attachment, error)
	DeleteAttachment(ctx context.Context, id string) (bool, error)

	// MCP servers
	CreateMCPServer(ctx context.Context, server *MCPServer) error
	GetMCPServer(ctx context.Context, id string) (*MCPServer, error)
	ListMCPServers(ctx context.Context) ([]*MCPServer, error)
	UpdateMCPServer(ctx context.Context, id string, update MCPServerUpdate) (*MCPServer, error)
	DeleteMCPServer(ctx context.Context, id string) (bool, error)

	// Plans
	CreatePlan(ctx context.Context, sessionID, title, content string) (*Plan, error)
	ListPlans(ctx context.Context, sessionID string) ([]*Plan, error)
	GetActivePlan(ctx context.Context, sessionID string) (*Plan, error)
	DeletePlan(ctx context.Context, sessionID, planID string) (bool, error)

	Close() error
}
