package fsm

import (
	"errors"
	"fmt"
)

// State is the audio transport mode. At most one of recording or playback is
// active at any time.
type State string

type Event string

const (
	StateIdle            State = "idle"
	StateRecording       State = "recording"
	StatePausedRecording State = "paused_recording"
	StatePlaying         State = "playing"
	StatePausedPlaying   State = "paused_playing"
)

const (
	EventRecord Event = "record"
	EventPlay   Event = "play"
	EventPause  Event = "pause"
	EventResume Event = "resume"
	EventStop   Event = "stop"
	// EventEnd is raised when the playback stream reaches its end.
	EventEnd Event = "end"
	// EventFail returns a running transport to idle after a device failure.
	EventFail Event = "fail"
)

var ErrInvalidTransition = errors.New("invalid transition")

func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventRecord:
			return StateRecording, nil
		case EventPlay:
			return StatePlaying, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventPause:
			return StatePausedRecording, nil
		case EventStop, EventFail:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StatePausedRecording:
		switch event {
		case EventResume:
			return StateRecording, nil
		case EventStop, EventFail:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StatePlaying:
		switch event {
		case EventPause:
			return StatePausedPlaying, nil
		case EventStop, EventEnd, EventFail:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StatePausedPlaying:
		switch event {
		case EventResume:
			return StatePlaying, nil
		case EventStop, EventEnd, EventFail:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Recording reports whether s is one of the recording modes.
func (s State) Recording() bool {
	return s == StateRecording || s == StatePausedRecording
}

// Playing reports whether s is one of the playback modes.
func (s State) Playing() bool {
	return s == StatePlaying || s == StatePausedPlaying
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("%w: %s --(%s)--> ?", ErrInvalidTransition, state, event)
}
