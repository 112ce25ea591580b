// ABOUTME: Registry of live agent session handles keyed by chat session id
// ABOUTME: Lets the gateway reuse handles across turns and drop them on cancel

package copilot

import (
	"context"
	"sync"
)

// Handle is a live, resumable connection to one agent conversation.
// *Session is the production implementation.
type Handle interface {
	ID() string
	Subscribe() (<-chan Event, func())
	Send(ctx context.Context, prompt Prompt) error
	Abort(ctx context.Context) error
	Destroy(ctx context.Context) error
}

// Registry maps chat session ids to live agent session handles.
type Registry struct {
	mu      sync.Mutex
	handles map[string]Handle
}

// NewRegistry creates an empty handle registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]Handle)}
}

// Get returns the live handle for a chat session, if any.
func (r *Registry) Get(chatSessionID string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[chatSessionID]
	return h, ok
}

// Put associates a live handle with a chat session, replacing any prior one.
func (r *Registry) Put(chatSessionID string, handle Handle) {
	r.mu.Lock()
	r.handles[chatSessionID] = handle
	r.mu.Unlock()
}

// Remove drops and destroys the handle for a chat session. It returns the
// removed handle, or nil when none was registered.
func (r *Registry) Remove(ctx context.Context, chatSessionID string) Handle {
	r.mu.Lock()
	h, ok := r.handles[chatSessionID]
	if ok {
		delete(r.handles, chatSessionID)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}
	// Best effort: the runtime may already have dropped the session.
	_ = h.Destroy(ctx)
	return h
}

// Len reports how many live handles are registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
