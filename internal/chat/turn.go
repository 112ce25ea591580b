// ABOUTME: One chat turn from user message to terminal agent event
// ABOUTME: Streams events as frames while accumulating the assistant message

package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Yoni-Raich/copilot-sdk-ui/internal/copilot"
	"github.com/Yoni-Raich/copilot-sdk-ui/internal/store"
	"github.com/Yoni-Raich/copilot-sdk-ui/internal/workspace"
)

// runTurn handles one inbound message frame end to end. Failures are
// reported as error frames; the connection is never torn down here.
func (g *Gateway) runTurn(ctx context.Context, conn *wsConn, log *slog.Logger, session *store.Session, frame inboundFrame, turn int) {
	attachments := g.attachments.Resolve(ctx, frame.AttachmentIDs)
	attachmentIDs := make([]string, 0, len(attachments))
	for _, att := range attachments {
		attachmentIDs = append(attachmentIDs, att.ID)
	}

	userMsg := &store.Message{
		ID:            uuid.New().String(),
		SessionID:     session.ID,
		Role:          store.RoleUser,
		Content:       frame.Content,
		AttachmentIDs: attachmentIDs,
		CreatedAt:     time.Now().UTC(),
	}
	session.Messages = append(session.Messages, userMsg)
	if len(session.Messages) == 1 {
		session.Name = sessionNameFromContent(frame.Content)
	}
	if err := g.store.SaveSession(ctx, session); err != nil {
		g.sendError(conn, log, "saving session: "+err.Error())
		return
	}
	g.send(conn, log, userMessageFrame{Type: "user_message", Message: userMsg})

	handle, err := g.acquireHandle(ctx, session)
	if err != nil {
		g.sendError(conn, log, "starting agent session: "+err.Error())
		return
	}

	events, unsubscribe := handle.Subscribe()
	defer unsubscribe()

	history := session.Messages[:len(session.Messages)-1]
	prompt := copilot.Prompt{Text: buildPrompt(history, frame.Content)}
	for _, att := range attachments {
		prompt.Attachments = append(prompt.Attachments, copilot.PromptAttachment{
			Path:     att.Path,
			MimeType: att.MimeType,
		})
	}

	if err := handle.Send(ctx, prompt); err != nil {
		g.sendError(conn, log, "sending prompt: "+err.Error())
		return
	}

	acc := newTurnAccumulator()
	timeout := time.NewTimer(g.turnTimeout)
	defer timeout.Stop()

	for {
		select {
		case event := <-events:
			done := g.relayEvent(conn, log, event, acc, turn)
			if !done {
				continue
			}
			switch event.Type {
			case copilot.EventIdle:
				g.completeTurn(ctx, conn, log, session, acc)
			case copilot.EventError:
				g.sendError(conn, log, event.Message)
			}
			// Aborted turns end silently; the cancel handler already
			// acknowledged.
			return
		case <-timeout.C:
			// The handle is retained: the turn is abandoned but the
			// conversation stays resumable.
			log.Warn("turn timed out", "timeout", g.turnTimeout)
			g.sendError(conn, log, "timed out waiting for agent response")
			return
		case <-ctx.Done():
			return
		}
	}
}

// relayEvent forwards one agent event as an outbound frame and records
// content-bearing events. Returns true for terminal events.
func (g *Gateway) relayEvent(conn *wsConn, log *slog.Logger, event copilot.Event, acc *turnAccumulator, turn int) bool {
	switch event.Type {
	case copilot.EventTurnStart:
		g.send(conn, log, turnFrame{Type: "turn_start", Turn: turn})
	case copilot.EventTurnEnd:
		g.send(conn, log, turnFrame{Type: "turn_end", Turn: turn})
	case copilot.EventMessageDelta:
		acc.appendContent(event.Delta)
		g.send(conn, log, streamFrame{Type: "stream", Content: event.Delta})
	case copilot.EventReasoningDelta:
		g.send(conn, log, streamFrame{Type: "reasoning", Content: event.Delta})
	case copilot.EventToolStart:
		acc.toolStart(event)
		g.send(conn, log, toolStartFrame{
			Type:      "tool_start",
			Tool:      event.Tool,
			ToolID:    event.CallID,
			Arguments: event.Arguments,
		})
	case copilot.EventToolComplete:
		name := acc.toolComplete(event)
		g.send(conn, log, toolCompleteFrame{
			Type:   "tool_complete",
			Tool:   name,
			ToolID: event.CallID,
			Result: event.Result,
		})
	}
	return event.Terminal()
}

// completeTurn persists the accumulated assistant message and sends the
// completion frame with the turn's tool calls.
func (g *Gateway) completeTurn(ctx context.Context, conn *wsConn, log *slog.Logger, session *store.Session, acc *turnAccumulator) {
	assistantMsg := &store.Message{
		ID:        uuid.New().String(),
		SessionID: session.ID,
		Role:      store.RoleAssistant,
		Content:   acc.content(),
		CreatedAt: time.Now().UTC(),
	}
	session.Messages = append(session.Messages, assistantMsg)
	if err := g.store.SaveSession(ctx, session); err != nil {
		g.sendError(conn, log, "saving assistant message: "+err.Error())
		return
	}
	g.send(conn, log, completeFrame{
		Type:      "complete",
		Message:   assistantMsg,
		ToolCalls: acc.calls(),
	})
}

// acquireHandle reuses the live handle for this session when one exists,
// tries to resume a prior agent conversation, and falls back to creating
// a fresh one when the resume fails.
func (g *Gateway) acquireHandle(ctx context.Context, session *store.Session) (copilot.Handle, error) {
	if h, ok := g.handles.Get(session.ID); ok {
		return h, nil
	}

	cfg, err := g.buildSessionConfig(ctx, session)
	if err != nil {
		return nil, err
	}

	if session.AgentSessionID != "" {
		cfg.SessionID = session.AgentSessionID
		if h, err := g.agent.ResumeSession(ctx, cfg); err == nil {
			g.handles.Put(session.ID, h)
			return h, nil
		}
		g.logger.Warn("resume failed, creating fresh agent session",
			"session_id", session.ID, "agent_session_id", session.AgentSessionID)
		cfg.SessionID = ""
	}

	h, err := g.agent.CreateSession(ctx, cfg)
	if err != nil {
		return nil, err
	}
	session.AgentSessionID = h.ID()
	// Persist right away so a turn that errors or times out still leaves
	// the conversation resumable after a restart.
	if err := g.store.SaveSession(ctx, session); err != nil {
		g.logger.Warn("persisting agent session id failed",
			"session_id", session.ID, "error", err)
	}
	g.handles.Put(session.ID, h)
	return h, nil
}

func (g *Gateway) buildSessionConfig(ctx context.Context, session *store.Session) (copilot.SessionConfig, error) {
	effectiveWorkspace := session.Workspace
	if effectiveWorkspace == "" {
		effectiveWorkspace = g.workspaces.Current()
	}

	cfg := copilot.SessionConfig{
		Model:            session.Model,
		Streaming:        true,
		SkillDirectories: g.workspaces.SkillDirectories(effectiveWorkspace),
	}
	if content := workspace.InstructionsContent(effectiveWorkspace); content != "" {
		cfg.SystemMessage = content
	}

	servers, err := g.store.ListMCPServers(ctx)
	if err != nil {
		return cfg, err
	}
	for _, server := range servers {
		if !server.Enabled {
			continue
		}
		if cfg.MCPServers == nil {
			cfg.MCPServers = make(map[string]copilot.MCPServerConfig)
		}
		cfg.MCPServers[server.Name] = copilot.MCPServerConfig{
			Command: server.Command,
			Args:    server.Args,
			Env:     server.Env,
		}
	}
	return cfg, nil
}

// turnAccumulator collects assistant output in emission order, with
// bracketed log entries interleaved for tool activity.
type turnAccumulator struct {
	parts     []string
	toolCalls []ToolCall
	toolIndex map[string]int
}

func newTurnAccumulator() *turnAccumulator {
	return &turnAccumulator{toolIndex: make(map[string]int)}
}

func (a *turnAccumulator) appendContent(delta string) {
	a.parts = append(a.parts, delta)
}

func (a *turnAccumulator) toolStart(event copilot.Event) {
	a.parts = append(a.parts, toolStartLog(event.Tool, string(event.Arguments)))
	a.toolIndex[event.CallID] = len(a.toolCalls)
	a.toolCalls = append(a.toolCalls, ToolCall{
		ID:        event.CallID,
		Name:      event.Tool,
		Arguments: event.Arguments,
		Status:    "running",
	})
}

// toolComplete records the result and returns the tool's name, looked up
// from the matching start event.
func (a *turnAccumulator) toolComplete(event copilot.Event) string {
	name := event.Tool
	if idx, ok := a.toolIndex[event.CallID]; ok {
		if name == "" {
			name = a.toolCalls[idx].Name
		}
		a.toolCalls[idx].Status = "complete"
		a.toolCalls[idx].Result = event.Result
	}
	a.parts = append(a.parts, toolCompleteLog(name))
	return name
}

func (a *turnAccumulator) content() string {
	return strings.Join(a.parts, "")
}

func (a *turnAccumulator) calls() []ToolCall {
	if a.toolCalls == nil {
		return []ToolCall{}
	}
	return a.toolCalls
}
