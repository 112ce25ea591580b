// ABOUTME: Process-wide runtime state shared by the gateway and handlers
// ABOUTME: Tracks the default model under a mutex

package server

import "sync"

// State holds mutable process-wide defaults.
type State struct {
	mu    sync.Mutex
	model string
}

// NewState creates runtime state with the given default model.
func NewState(model string) *State {
	return &State{model: model}
}

// CurrentModel returns the process-wide default model.
func (s *State) CurrentModel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SetModel switches the process-wide default model.
func (s *State) SetModel(model string) {
	s.mu.Lock()
	s.model = model
	s.mu.Unlock()
}
