// ABOUTME: End-to-end tests for the chat WebSocket gateway
// ABOUTME: Uses a scripted fake agent behind a real echo + gorilla stack

package chat

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yoni-Raich/copilot-sdk-ui/internal/copilot"
	"github.com/Yoni-Raich/copilot-sdk-ui/internal/store"
	"github.com/Yoni-Raich/copilot-sdk-ui/internal/workspace"
)

// fakeHandle is a scripted agent session: each Send replays the script
// to all subscribers.
type fakeHandle struct {
	id     string
	script []copilot.Event

	mu        sync.Mutex
	listeners []chan copilot.Event
	prompts   []copilot.Prompt
	aborted   bool
	destroyed bool
}

func (h *fakeHandle) ID() string { return h.id }

func (h *fakeHandle) Subscribe() (<-chan copilot.Event, func()) {
	ch := make(chan copilot.Event, 256)
	h.mu.Lock()
	h.listeners = append(h.listeners, ch)
	h.mu.Unlock()
	return ch, func() {}
}

func (h *fakeHandle) Send(_ context.Context, prompt copilot.Prompt) error {
	h.mu.Lock()
	h.prompts = append(h.prompts, prompt)
	listeners := append([]chan copilot.Event(nil), h.listeners...)
	script := h.script
	h.mu.Unlock()

	go func() {
		for _, event := range script {
			for _, ch := range listeners {
				ch <- event
			}
		}
	}()
	return nil
}

func (h *fakeHandle) Abort(context.Context) error {
	h.mu.Lock()
	h.aborted = true
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) Destroy(context.Context) error {
	h.mu.Lock()
	h.destroyed = true
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) lastPrompt() copilot.Prompt {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.prompts) == 0 {
		return copilot.Prompt{}
	}
	return h.prompts[len(h.prompts)-1]
}

// fakeAgent hands out fakeHandles and records the configs it saw.
type fakeAgent struct {
	mu        sync.Mutex
	handle    *fakeHandle
	resumeErr error
	created   []copilot.SessionConfig
	resumed   []copilot.SessionConfig
}

func (a *fakeAgent) CreateSession(_ context.Context, cfg copilot.SessionConfig) (copilot.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.created = append(a.created, cfg)
	return a.handle, nil
}

func (a *fakeAgent) ResumeSession(_ context.Context, cfg copilot.SessionConfig) (copilot.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resumed = append(a.resumed, cfg)
	if a.resumeErr != nil {
		return nil, a.resumeErr
	}
	return a.handle, nil
}

type fakeAttachments struct {
	atts map[string]*store.Attachment
}

func (f *fakeAttachments) Resolve(_ context.Context, ids []string) []*store.Attachment {
	var out []*store.Attachment
	for _, id := range ids {
		if att, ok := f.atts[id]; ok {
			out = append(out, att)
		}
	}
	return out
}

type fakeState struct{ model string }

func (s *fakeState) CurrentModel() string { return s.model }

type gatewayFixture struct {
	store  store.Store
	agent  *fakeAgent
	server *httptest.Server
}

func newGatewayFixture(t *testing.T, agent *fakeAgent, atts *fakeAttachments, turnTimeout time.Duration) *gatewayFixture {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if atts == nil {
		atts = &fakeAttachments{atts: map[string]*store.Attachment{}}
	}
	gw := NewGateway(GatewayConfig{
		Store:       st,
		Agent:       agent,
		Handles:     copilot.NewRegistry(),
		Attachments: atts,
		Workspaces:  workspace.NewManager(t.TempDir(), logger),
		State:       &fakeState{model: "claude-sonnet-4"},
		TurnTimeout: turnTimeout,
		Logger:      logger,
	})

	e := echo.New()
	gw.Register(e)
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return &gatewayFixture{store: st, agent: agent, server: server}
}

func (f *gatewayFixture) dial(t *testing.T, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/chat/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func idleScript(deltas ...string) []copilot.Event {
	events := []copilot.Event{{Type: copilot.EventTurnStart}}
	for _, d := range deltas {
		events = append(events, copilot.Event{Type: copilot.EventMessageDelta, Delta: d})
	}
	return append(events, copilot.Event{Type: copilot.EventTurnEnd}, copilot.Event{Type: copilot.EventIdle})
}

func TestTurn_StreamAndComplete(t *testing.T) {
	agent := &fakeAgent{handle: &fakeHandle{id: "agent-1", script: idleScript("hel", "lo t", "here")}}
	f := newGatewayFixture(t, agent, nil, 5*time.Second)
	conn := f.dial(t, "s1")

	sendFrame(t, conn, map[string]any{"type": "message", "content": "hello"})

	frame := readFrame(t, conn)
	require.Equal(t, "user_message", frame["type"])
	msg := frame["message"].(map[string]any)
	assert.Equal(t, "hello", msg["content"])
	assert.Equal(t, "user", msg["role"])

	var streamed strings.Builder
	for {
		frame = readFrame(t, conn)
		switch frame["type"] {
		case "turn_start", "turn_end":
			assert.Equal(t, float64(1), frame["turn"])
		case "stream":
			streamed.WriteString(frame["content"].(string))
		case "complete":
			final := frame["message"].(map[string]any)
			// The completion carries exactly the concatenated deltas
			assert.Equal(t, streamed.String(), final["content"])
			assert.Equal(t, "hello there", final["content"])
			assert.Equal(t, "assistant", final["role"])
			assert.Empty(t, frame["tool_calls"])

			stored, err := f.store.GetSession(t.Context(), "s1")
			require.NoError(t, err)
			require.Len(t, stored.Messages, 2)
			assert.Equal(t, "hello", stored.Name)
			assert.Equal(t, "agent-1", stored.AgentSessionID)
			return
		default:
			t.Fatalf("unexpected frame %v", frame)
		}
	}
}

func TestTurn_UnknownAttachmentsDropped(t *testing.T) {
	agent := &fakeAgent{handle: &fakeHandle{id: "agent-1", script: idleScript("ok")}}
	atts := &fakeAttachments{atts: map[string]*store.Attachment{
		"known": {ID: "known", Path: "/tmp/known.png", MimeType: "image/png"},
	}}
	f := newGatewayFixture(t, agent, atts, 5*time.Second)
	conn := f.dial(t, "s1")

	sendFrame(t, conn, map[string]any{
		"type":           "message",
		"content":        "see files",
		"attachment_ids": []string{"known", "missing-id"},
	})

	frame := readFrame(t, conn)
	require.Equal(t, "user_message", frame["type"])
	msg := frame["message"].(map[string]any)
	ids := msg["attachment_ids"].([]any)
	assert.Equal(t, []any{"known"}, ids)

	waitForComplete(t, conn)
	prompt := agent.handle.lastPrompt()
	require.Len(t, prompt.Attachments, 1)
	assert.Equal(t, "/tmp/known.png", prompt.Attachments[0].Path)
}

func waitForComplete(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	for {
		frame := readFrame(t, conn)
		switch frame["type"] {
		case "complete":
			return frame
		case "error":
			t.Fatalf("turn failed: %v", frame["error"])
		}
	}
}

func TestSetModel(t *testing.T) {
	agent := &fakeAgent{handle: &fakeHandle{id: "agent-1"}}
	f := newGatewayFixture(t, agent, nil, 5*time.Second)
	conn := f.dial(t, "s1")

	sendFrame(t, conn, map[string]any{"type": "set_model", "model": "gpt-4.1"})
	frame := readFrame(t, conn)
	assert.Equal(t, "model_set", frame["type"])
	assert.Equal(t, "gpt-4.1", frame["model"])

	stored, err := f.store.GetSession(t.Context(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", stored.Model)
}

func TestCancel_IdempotentWithoutHandle(t *testing.T) {
	agent := &fakeAgent{handle: &fakeHandle{id: "agent-1"}}
	f := newGatewayFixture(t, agent, nil, 5*time.Second)
	conn := f.dial(t, "s1")

	sendFrame(t, conn, map[string]any{"type": "cancel"})
	frame := readFrame(t, conn)
	assert.Equal(t, "cancelled", frame["type"])

	// A second cancel still acknowledges
	sendFrame(t, conn, map[string]any{"type": "cancel"})
	frame = readFrame(t, conn)
	assert.Equal(t, "cancelled", frame["type"])
}

func TestCancel_ReleasesLiveHandle(t *testing.T) {
	handle := &fakeHandle{id: "agent-1", script: idleScript("done")}
	agent := &fakeAgent{handle: handle}
	f := newGatewayFixture(t, agent, nil, 5*time.Second)
	conn := f.dial(t, "s1")

	sendFrame(t, conn, map[string]any{"type": "message", "content": "hi"})
	waitForComplete(t, conn)

	sendFrame(t, conn, map[string]any{"type": "cancel"})
	frame := readFrame(t, conn)
	assert.Equal(t, "cancelled", frame["type"])

	handle.mu.Lock()
	defer handle.mu.Unlock()
	assert.True(t, handle.aborted)
	assert.True(t, handle.destroyed)
}

func TestTurn_TimeoutLeavesConnectionUsable(t *testing.T) {
	// No terminal event in the script, so the first turn times out
	handle := &fakeHandle{id: "agent-1", script: []copilot.Event{{Type: copilot.EventTurnStart}}}
	agent := &fakeAgent{handle: handle}
	f := newGatewayFixture(t, agent, nil, 200*time.Millisecond)
	conn := f.dial(t, "s1")

	sendFrame(t, conn, map[string]any{"type": "message", "content": "slow one"})

	sawError := 0
	for {
		frame := readFrame(t, conn)
		if frame["type"] == "error" {
			sawError++
			assert.Contains(t, frame["error"], "timed out")
			break
		}
	}
	assert.Equal(t, 1, sawError)

	// The same connection accepts another turn afterwards
	handle.mu.Lock()
	handle.script = idleScript("recovered")
	handle.mu.Unlock()

	sendFrame(t, conn, map[string]any{"type": "message", "content": "again"})
	frame := readFrame(t, conn)
	assert.Equal(t, "user_message", frame["type"])
	complete := waitForComplete(t, conn)
	assert.Equal(t, "recovered", complete["message"].(map[string]any)["content"])
}

func TestTurn_ToolEvents(t *testing.T) {
	args := json.RawMessage(`{"path":"main.go"}`)
	script := []copilot.Event{
		{Type: copilot.EventTurnStart},
		{Type: copilot.EventMessageDelta, Delta: "Let me look."},
		{Type: copilot.EventToolStart, Tool: "read_file", CallID: "call-1", Arguments: args},
		{Type: copilot.EventToolComplete, CallID: "call-1", Result: "package main"},
		{Type: copilot.EventMessageDelta, Delta: " Done."},
		{Type: copilot.EventIdle},
	}
	agent := &fakeAgent{handle: &fakeHandle{id: "agent-1", script: script}}
	f := newGatewayFixture(t, agent, nil, 5*time.Second)
	conn := f.dial(t, "s1")

	sendFrame(t, conn, map[string]any{"type": "message", "content": "read main.go"})

	var sawStart, sawComplete bool
	var complete map[string]any
	for complete == nil {
		frame := readFrame(t, conn)
		switch frame["type"] {
		case "tool_start":
			sawStart = true
			assert.Equal(t, "read_file", frame["tool"])
			assert.Equal(t, "call-1", frame["tool_id"])
		case "tool_complete":
			sawComplete = true
			assert.Equal(t, "read_file", frame["tool"])
			assert.Equal(t, "package main", frame["result"])
		case "complete":
			complete = frame
		case "error":
			t.Fatalf("turn failed: %v", frame["error"])
		}
	}
	assert.True(t, sawStart)
	assert.True(t, sawComplete)

	calls := complete["tool_calls"].([]any)
	require.Len(t, calls, 1)
	call := calls[0].(map[string]any)
	assert.Equal(t, "call-1", call["id"])
	assert.Equal(t, "read_file", call["name"])
	assert.Equal(t, "complete", call["status"])
	assert.Equal(t, "package main", call["result"])

	// The persisted transcript interleaves the bracketed tool log
	content := complete["message"].(map[string]any)["content"].(string)
	assert.Contains(t, content, "Let me look.")
	assert.Contains(t, content, "**Tool Call:** `read_file`")
	assert.Contains(t, content, "**Tool Result:** `read_file`")
	assert.Contains(t, content, " Done.")
}

func TestTurn_AgentError(t *testing.T) {
	script := []copilot.Event{
		{Type: copilot.EventMessageDelta, Delta: "partial"},
		{Type: copilot.EventError, Message: "model overloaded"},
	}
	agent := &fakeAgent{handle: &fakeHandle{id: "agent-1", script: script}}
	f := newGatewayFixture(t, agent, nil, 5*time.Second)
	conn := f.dial(t, "s1")

	sendFrame(t, conn, map[string]any{"type": "message", "content": "hi"})

	for {
		frame := readFrame(t, conn)
		if frame["type"] == "error" {
			assert.Equal(t, "model overloaded", frame["error"])
			break
		}
		require.NotEqual(t, "complete", frame["type"])
	}

	// The failed turn persists only the user message, but keeps the
	// agent session id so the conversation survives a restart
	stored, err := f.store.GetSession(t.Context(), "s1")
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 1)
	assert.Equal(t, "agent-1", stored.AgentSessionID)
}

func TestTurn_SecondMessageCarriesHistory(t *testing.T) {
	handle := &fakeHandle{id: "agent-1", script: idleScript("first answer")}
	agent := &fakeAgent{handle: handle}
	f := newGatewayFixture(t, agent, nil, 5*time.Second)
	conn := f.dial(t, "s1")

	sendFrame(t, conn, map[string]any{"type": "message", "content": "first question"})
	waitForComplete(t, conn)
	assert.NotContains(t, handle.lastPrompt().Text, "Conversation history:")

	sendFrame(t, conn, map[string]any{"type": "message", "content": "second question"})
	waitForComplete(t, conn)

	prompt := handle.lastPrompt().Text
	assert.Contains(t, prompt, "Conversation history:")
	assert.Contains(t, prompt, "Human: first question")
	assert.Contains(t, prompt, "Assistant: first answer")
	assert.Contains(t, prompt, "Human: second question")
	assert.Contains(t, prompt, "Respond to my latest message.")
}

func TestTurn_ResumeFallsBackToCreate(t *testing.T) {
	handle := &fakeHandle{id: "agent-2", script: idleScript("back")}
	agent := &fakeAgent{handle: handle, resumeErr: copilot.ErrClientClosed}
	f := newGatewayFixture(t, agent, nil, 5*time.Second)

	// Seed a session that references an expired agent conversation
	session, err := f.store.CreateSession(t.Context(), store.SessionSpec{ID: "s1", Model: "claude-sonnet-4"})
	require.NoError(t, err)
	session.AgentSessionID = "expired-agent-id"
	require.NoError(t, f.store.SaveSession(t.Context(), session))

	conn := f.dial(t, "s1")
	sendFrame(t, conn, map[string]any{"type": "message", "content": "hi"})
	waitForComplete(t, conn)

	agent.mu.Lock()
	defer agent.mu.Unlock()
	require.Len(t, agent.resumed, 1)
	assert.Equal(t, "expired-agent-id", agent.resumed[0].SessionID)
	require.Len(t, agent.created, 1)
	assert.Empty(t, agent.created[0].SessionID)
}

func TestExecute(t *testing.T) {
	agent := &fakeAgent{handle: &fakeHandle{id: "agent-1"}}
	f := newGatewayFixture(t, agent, nil, 5*time.Second)
	conn := f.dial(t, "s1")

	sendFrame(t, conn, map[string]any{"type": "execute", "command": "echo out && echo err >&2 && exit 2"})

	frame := readFrame(t, conn)
	assert.Equal(t, "exec_output", frame["type"])
	assert.Equal(t, "out\n", frame["content"])

	frame = readFrame(t, conn)
	assert.Equal(t, "exec_error", frame["type"])
	assert.Equal(t, "err\n", frame["content"])

	frame = readFrame(t, conn)
	assert.Equal(t, "exec_complete", frame["type"])
	assert.Equal(t, float64(2), frame["code"])
}

func TestUnknownFrameType(t *testing.T) {
	agent := &fakeAgent{handle: &fakeHandle{id: "agent-1"}}
	f := newGatewayFixture(t, agent, nil, 5*time.Second)
	conn := f.dial(t, "s1")

	sendFrame(t, conn, map[string]any{"type": "teleport"})
	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame["type"])
	assert.Contains(t, frame["error"], "unknown frame type")

	// Connection still works afterwards
	sendFrame(t, conn, map[string]any{"type": "cancel"})
	frame = readFrame(t, conn)
	assert.Equal(t, "cancelled", frame["type"])
}

func TestConnect_SessionCreatedWithDefaults(t *testing.T) {
	agent := &fakeAgent{handle: &fakeHandle{id: "agent-1"}}
	f := newGatewayFixture(t, agent, nil, 5*time.Second)
	conn := f.dial(t, "fresh-session")

	// Any round-trip proves the connect path ran
	sendFrame(t, conn, map[string]any{"type": "cancel"})
	readFrame(t, conn)

	stored, err := f.store.GetSession(t.Context(), "fresh-session")
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4", stored.Model)
	assert.Equal(t, "New Chat", stored.Name)
	assert.NotEmpty(t, stored.Workspace)
}
