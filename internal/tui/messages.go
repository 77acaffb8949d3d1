package tui

import "github.com/rbright/narrate/internal/session"

// statusMsg carries a fresh session snapshot.
type statusMsg struct {
	status session.Status
}

// resultMsg reports the outcome of one dispatched command.
type resultMsg struct {
	action string
	err    error
}

type refreshTickMsg struct{}

type clearErrorMsg struct{}
