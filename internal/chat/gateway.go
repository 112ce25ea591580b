// ABOUTME: WebSocket chat gateway binding one connection to one session
// ABOUTME: Dispatches inbound frames and keeps the connection alive on errors

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Yoni-Raich/copilot-sdk-ui/internal/copilot"
	"github.com/Yoni-Raich/copilot-sdk-ui/internal/store"
	"github.com/Yoni-Raich/copilot-sdk-ui/internal/workspace"
)

// Agent creates and resumes live agent conversations.
type Agent interface {
	CreateSession(ctx context.Context, cfg copilot.SessionConfig) (copilot.Handle, error)
	ResumeSession(ctx context.Context, cfg copilot.SessionConfig) (copilot.Handle, error)
}

// Attachments resolves uploaded attachment ids, dropping unknown ones.
type Attachments interface {
	Resolve(ctx context.Context, ids []string) []*store.Attachment
}

// Workspaces provides the workspace operations a connection needs.
type Workspaces interface {
	Current() string
	SkillDirectories(workspacePath string) []string
	Execute(ctx context.Context, command, dir string) (*workspace.ExecResult, error)
}

// RuntimeState exposes the process-wide default model.
type RuntimeState interface {
	CurrentModel() string
}

// GatewayConfig wires the gateway's collaborators.
type GatewayConfig struct {
	Store       store.Store
	Agent       Agent
	Handles     *copilot.Registry
	Attachments Attachments
	Workspaces  Workspaces
	State       RuntimeState
	TurnTimeout time.Duration
	Logger      *slog.Logger
}

// Gateway serves the /ws/chat endpoint.
type Gateway struct {
	store       store.Store
	agent       Agent
	handles     *copilot.Registry
	attachments Attachments
	workspaces  Workspaces
	state       RuntimeState
	turnTimeout time.Duration
	logger      *slog.Logger
	upgrader    websocket.Upgrader
}

// NewGateway creates a chat gateway.
func NewGateway(cfg GatewayConfig) *Gateway {
	return &Gateway{
		store:       cfg.Store,
		agent:       cfg.Agent,
		handles:     cfg.Handles,
		attachments: cfg.Attachments,
		workspaces:  cfg.Workspaces,
		state:       cfg.State,
		turnTimeout: cfg.TurnTimeout,
		logger:      cfg.Logger.With("component", "chat"),
		upgrader: websocket.Upgrader{
			// The UI is served from its own dev origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Register mounts the chat WebSocket route.
func (g *Gateway) Register(e *echo.Echo) {
	e.GET("/ws/chat/:session_id", g.handleWS)
}

// wsConn serializes writes to one WebSocket connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

func (g *Gateway) handleWS(c echo.Context) error {
	sessionID := c.Param("session_id")
	raw, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer raw.Close()

	ctx := c.Request().Context()
	log := g.logger.With("session_id", sessionID)

	session, err := g.resolveSession(ctx, sessionID)
	if err != nil {
		log.Error("resolving session failed", "error", err)
		return nil
	}
	log.Info("chat connection opened")

	conn := &wsConn{conn: raw}
	turn := 0
	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			// Disconnect leaves the session and any live handle intact
			// so the client can reconnect and resume.
			log.Info("chat connection closed", "error", err)
			return nil
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			g.sendError(conn, log, "invalid frame: "+err.Error())
			continue
		}

		switch frame.Type {
		case frameSetModel:
			g.handleSetModel(ctx, conn, log, session, frame.Model)
		case frameMessage:
			turn++
			g.runTurn(ctx, conn, log, session, frame, turn)
		case frameCancel:
			g.handleCancel(ctx, conn, log, session.ID)
		case frameExecute:
			g.handleExecute(ctx, conn, log, session, frame.Command)
		default:
			g.sendError(conn, log, "unknown frame type: "+frame.Type)
		}
	}
}

// resolveSession loads the bound session, creating it with process-wide
// defaults on first contact.
func (g *Gateway) resolveSession(ctx context.Context, sessionID string) (*store.Session, error) {
	session, err := g.store.GetSession(ctx, sessionID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return g.store.CreateSession(ctx, store.SessionSpec{
		ID:        sessionID,
		Workspace: g.workspaces.Current(),
		Model:     g.state.CurrentModel(),
	})
}

func (g *Gateway) handleSetModel(ctx context.Context, conn *wsConn, log *slog.Logger, session *store.Session, model string) {
	if model != "" {
		session.Model = model
	}
	if err := g.store.SaveSession(ctx, session); err != nil {
		g.sendError(conn, log, "saving session: "+err.Error())
		return
	}
	log.Info("model switched", "model", session.Model)
	g.send(conn, log, modelSetFrame{Type: "model_set", Model: session.Model})
}

// handleCancel aborts any in-flight turn and releases the live handle.
// Cancel is advisory and idempotent: the acknowledgement is sent whether
// or not a handle existed, and abort failures are swallowed.
func (g *Gateway) handleCancel(ctx context.Context, conn *wsConn, log *slog.Logger, sessionID string) {
	if h, ok := g.handles.Get(sessionID); ok {
		if err := h.Abort(ctx); err != nil {
			log.Warn("abort failed", "error", err)
		}
	}
	g.handles.Remove(ctx, sessionID)
	log.Info("turn cancelled")
	g.send(conn, log, cancelledFrame{Type: "cancelled"})
}

func (g *Gateway) handleExecute(ctx context.Context, conn *wsConn, log *slog.Logger, session *store.Session, command string) {
	result, err := g.workspaces.Execute(ctx, command, session.Workspace)
	if err != nil {
		g.send(conn, log, execOutputFrame{Type: "exec_error", Content: err.Error()})
		return
	}
	if result.Stdout != "" {
		g.send(conn, log, execOutputFrame{Type: "exec_output", Content: result.Stdout})
	}
	if result.Stderr != "" {
		g.send(conn, log, execOutputFrame{Type: "exec_error", Content: result.Stderr})
	}
	g.send(conn, log, execCompleteFrame{Type: "exec_complete", Code: result.ExitCode})
}

func (g *Gateway) send(conn *wsConn, log *slog.Logger, frame any) {
	if err := conn.writeJSON(frame); err != nil {
		log.Warn("writing frame failed", "error", err)
	}
}

func (g *Gateway) sendError(conn *wsConn, log *slog.Logger, msg string) {
	log.Warn("turn error", "error", msg)
	g.send(conn, log, errorFrame{Type: "error", Error: msg})
}
