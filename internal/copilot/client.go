// ABOUTME: JSON-RPC client for the copilot agent runtime subprocess
// ABOUTME: Spawns the runtime, correlates requests, and routes session events

package copilot

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
)

var (
	// ErrClientClosed is returned when the runtime process is gone.
	ErrClientClosed = errors.New("copilot client closed")
	// ErrNotStarted is returned for calls before Start.
	ErrNotStarted = errors.New("copilot client not started")
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// rpcMessage covers both responses (ID set) and notifications (Method set).
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcResult struct {
	result json.RawMessage
	err    error
}

// Client talks to the copilot agent runtime over newline-delimited JSON-RPC
// on the subprocess's stdin and stdout.
type Client struct {
	command string
	args    []string
	logger  *slog.Logger

	cmd   *exec.Cmd
	stdin io.WriteCloser

	writeMu sync.Mutex

	mu       sync.Mutex
	nextID   int64
	pending  map[int64]chan rpcResult
	sessions map[string]*Session
	closed   bool
	started  bool
}

// NewClient creates a client that will run the given command when started.
func NewClient(command string, args []string, logger *slog.Logger) *Client {
	return &Client{
		command:  command,
		args:     args,
		logger:   logger.With("component", "copilot"),
		pending:  make(map[int64]chan rpcResult),
		sessions: make(map[string]*Session),
	}
}

// newClient wires a client directly to a reader and writer without a process.
func newClient(w io.WriteCloser, r io.Reader, logger *slog.Logger) *Client {
	c := &Client{
		logger:   logger.With("component", "copilot"),
		pending:  make(map[int64]chan rpcResult),
		sessions: make(map[string]*Session),
	}
	c.startIO(w, r)
	return c
}

// Start launches the runtime subprocess and begins reading events.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("copilot client already started")
	}
	c.mu.Unlock()

	cmd := exec.CommandContext(ctx, c.command, c.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("opening runtime stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("opening runtime stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting runtime %q: %w", c.command, err)
	}

	c.cmd = cmd
	c.startIO(stdin, stdout)
	c.logger.Info("copilot runtime started", "command", c.command, "pid", cmd.Process.Pid)
	return nil
}

func (c *Client) startIO(w io.WriteCloser, r io.Reader) {
	c.mu.Lock()
	c.stdin = w
	c.started = true
	c.mu.Unlock()
	go c.readLoop(r)
}

// Close shuts down the runtime and fails all outstanding calls.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	stdin := c.stdin
	cmd := c.cmd
	c.failPendingLocked(ErrClientClosed)
	c.mu.Unlock()

	if stdin != nil {
		stdin.Close()
	}
	if cmd != nil {
		return cmd.Wait()
	}
	return nil
}

func (c *Client) failPendingLocked(err error) {
	for id, ch := range c.pending {
		ch <- rpcResult{err: err}
		delete(c.pending, id)
	}
}

// call sends one request and waits for its response or context cancellation.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil, ErrNotStarted
	}
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	c.nextID++
	id := c.nextID
	ch := make(chan rpcResult, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		c.dropPending(id)
		return nil, fmt.Errorf("encoding %s request: %w", method, err)
	}
	payload = append(payload, '\n')

	c.writeMu.Lock()
	_, err = c.stdin.Write(payload)
	c.writeMu.Unlock()
	if err != nil {
		c.dropPending(id)
		return nil, fmt.Errorf("writing %s request: %w", method, err)
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		return res.result, nil
	case <-ctx.Done():
		c.dropPending(id)
		return nil, ctx.Err()
	}
}

func (c *Client) dropPending(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) readLoop(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg rpcMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			c.logger.Warn("dropping unparseable runtime message", "error", err)
			continue
		}
		if msg.ID != nil {
			c.dispatchResponse(msg)
			continue
		}
		c.dispatchNotification(msg)
	}

	c.mu.Lock()
	c.closed = true
	c.failPendingLocked(ErrClientClosed)
	c.mu.Unlock()
	c.logger.Info("copilot runtime stream closed")
}

func (c *Client) dispatchResponse(msg rpcMessage) {
	c.mu.Lock()
	ch, ok := c.pending[*msg.ID]
	if ok {
		delete(c.pending, *msg.ID)
	}
	c.mu.Unlock()
	if !ok {
		c.logger.Warn("response for unknown request", "id", *msg.ID)
		return
	}
	if msg.Error != nil {
		ch <- rpcResult{err: msg.Error}
		return
	}
	ch <- rpcResult{result: msg.Result}
}

type sessionEventParams struct {
	SessionID string `json:"session_id"`
	Event     Event  `json:"event"`
}

func (c *Client) dispatchNotification(msg rpcMessage) {
	if msg.Method != "session/event" {
		c.logger.Debug("ignoring runtime notification", "method", msg.Method)
		return
	}
	var params sessionEventParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		c.logger.Warn("dropping malformed session event", "error", err)
		return
	}

	c.mu.Lock()
	session := c.sessions[params.SessionID]
	c.mu.Unlock()
	if session == nil {
		c.logger.Debug("event for unknown session", "session_id", params.SessionID)
		return
	}
	session.deliver(params.Event)
}

type modelsResult struct {
	Models []ModelInfo `json:"models"`
}

// ListModels asks the runtime which models are available.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	raw, err := c.call(ctx, "models/list", nil)
	if err != nil {
		return nil, err
	}
	var res modelsResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decoding models list: %w", err)
	}
	return res.Models, nil
}

type sessionResult struct {
	SessionID string `json:"session_id"`
}

// CreateSession opens a new agent session with the given configuration.
func (c *Client) CreateSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	return c.openSession(ctx, "session/create", cfg)
}

// ResumeSession reattaches to an existing agent session by its runtime id.
func (c *Client) ResumeSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	if cfg.SessionID == "" {
		return nil, errors.New("resume requires a session id")
	}
	return c.openSession(ctx, "session/resume", cfg)
}

func (c *Client) openSession(ctx context.Context, method string, cfg SessionConfig) (*Session, error) {
	raw, err := c.call(ctx, method, cfg)
	if err != nil {
		return nil, err
	}
	var res sessionResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", method, err)
	}
	if res.SessionID == "" {
		return nil, fmt.Errorf("%s returned no session id", method)
	}

	session := &Session{
		id:        res.SessionID,
		client:    c,
		listeners: make(map[int]chan Event),
	}
	c.mu.Lock()
	c.sessions[res.SessionID] = session
	c.mu.Unlock()
	c.logger.Info("agent session opened", "session_id", res.SessionID, "model", cfg.Model)
	return session, nil
}

func (c *Client) forgetSession(id string) {
	c.mu.Lock()
	delete(c.sessions, id)
	c.mu.Unlock()
}
