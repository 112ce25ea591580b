// ABOUTME: Live agent session handle with event subscription
// ABOUTME: Sends prompts, aborts turns, and fans runtime events out to listeners

package copilot

import (
	"context"
	"sync"
)

// Session is a live handle to one agent session inside the runtime.
// Handles survive across turns until destroyed.
type Session struct {
	id     string
	client *Client

	mu         sync.Mutex
	listeners  map[int]chan Event
	nextListen int
}

// ID returns the runtime's identifier for this session.
func (s *Session) ID() string {
	return s.id
}

// Subscribe registers for this session's events. The returned channel is
// buffered; a listener that stops draining it loses events once the
// buffer fills, so unsubscribe promptly after the terminal event.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 256)

	s.mu.Lock()
	id := s.nextListen
	s.nextListen++
	s.listeners[id] = ch
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
	return ch, unsubscribe
}

// deliver sends an event to every current listener. Sends never block the
// runtime read loop: a listener whose buffer is full misses the event.
func (s *Session) deliver(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.listeners {
		select {
		case ch <- event:
		default:
		}
	}
}

type promptParams struct {
	SessionID string `json:"session_id"`
	Prompt    Prompt `json:"prompt"`
}

// Send starts a turn with the given prompt. The runtime acknowledges
// immediately; progress arrives through subscribed event channels.
func (s *Session) Send(ctx context.Context, prompt Prompt) error {
	_, err := s.client.call(ctx, "session/prompt", promptParams{SessionID: s.id, Prompt: prompt})
	return err
}

type sessionParams struct {
	SessionID string `json:"session_id"`
}

// Abort asks the runtime to stop the current turn. Aborting an idle
// session is a no-op on the runtime side.
func (s *Session) Abort(ctx context.Context) error {
	_, err := s.client.call(ctx, "session/abort", sessionParams{SessionID: s.id})
	return err
}

// Destroy tears the session down in the runtime and stops event routing.
func (s *Session) Destroy(ctx context.Context) error {
	s.client.forgetSession(s.id)
	_, err := s.client.call(ctx, "session/destroy", sessionParams{SessionID: s.id})
	return err
}
