package store

import (
	"context"
	"sync"
)

// Memory keeps sessions for the lifetime of the process only.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]State
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]State)}
}

func (m *Memory) Load(_ context.Context, documentPath string) (State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.sessions[documentPath]
	return state, ok, nil
}

func (m *Memory) Save(_ context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[state.DocumentPath] = state
	return nil
}

func (m *Memory) Close() error {
	return nil
}

// Unavailable is a store that could not be opened. Load reports the open
// failure so the session degrades to memory and surfaces it.
type Unavailable struct {
	Err error
}

func (u Unavailable) Load(context.Context, string) (State, bool, error) {
	return State{}, false, failure("open session store", u.Err)
}

func (u Unavailable) Save(context.Context, State) error {
	return failure("open session store", u.Err)
}

func (u Unavailable) Close() error {
	return nil
}
