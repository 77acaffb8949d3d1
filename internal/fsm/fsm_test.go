package fsm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionRecordingHappyPath(t *testing.T) {
	s := StateIdle

	next, err := Transition(s, EventRecord)
	require.NoError(t, err)
	require.Equal(t, StateRecording, next)

	next, err = Transition(next, EventPause)
	require.NoError(t, err)
	require.Equal(t, StatePausedRecording, next)

	next, err = Transition(next, EventResume)
	require.NoError(t, err)
	require.Equal(t, StateRecording, next)

	next, err = Transition(next, EventStop)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)
}

func TestTransitionPlaybackHappyPath(t *testing.T) {
	next, err := Transition(StateIdle, EventPlay)
	require.NoError(t, err)
	require.Equal(t, StatePlaying, next)

	next, err = Transition(next, EventPause)
	require.NoError(t, err)
	require.Equal(t, StatePausedPlaying, next)

	next, err = Transition(next, EventEnd)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)
}

func TestTransitionFailFromActiveStatesGoesIdle(t *testing.T) {
	states := []State{StateRecording, StatePausedRecording, StatePlaying, StatePausedPlaying}
	for _, state := range states {
		next, err := Transition(state, EventFail)
		require.NoError(t, err)
		require.Equal(t, StateIdle, next)
	}
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "idle stop invalid", state: StateIdle, event: EventStop, want: StateIdle, wantErr: true},
		{name: "idle pause invalid", state: StateIdle, event: EventPause, want: StateIdle, wantErr: true},
		{name: "idle end invalid", state: StateIdle, event: EventEnd, want: StateIdle, wantErr: true},
		{name: "recording play invalid", state: StateRecording, event: EventPlay, want: StateRecording, wantErr: true},
		{name: "recording record invalid", state: StateRecording, event: EventRecord, want: StateRecording, wantErr: true},
		{name: "recording end invalid", state: StateRecording, event: EventEnd, want: StateRecording, wantErr: true},
		{name: "recording resume invalid", state: StateRecording, event: EventResume, want: StateRecording, wantErr: true},
		{name: "paused recording pause invalid", state: StatePausedRecording, event: EventPause, want: StatePausedRecording, wantErr: true},
		{name: "playing record invalid", state: StatePlaying, event: EventRecord, want: StatePlaying, wantErr: true},
		{name: "playing resume invalid", state: StatePlaying, event: EventResume, want: StatePlaying, wantErr: true},
		{name: "paused playing play invalid", state: StatePausedPlaying, event: EventPlay, want: StatePausedPlaying, wantErr: true},
		{name: "paused playing resume valid", state: StatePausedPlaying, event: EventResume, want: StatePlaying, wantErr: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrInvalidTransition))
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventRecord)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}

func TestStateModeHelpers(t *testing.T) {
	require.True(t, StateRecording.Recording())
	require.True(t, StatePausedRecording.Recording())
	require.False(t, StatePlaying.Recording())
	require.True(t, StatePlaying.Playing())
	require.True(t, StatePausedPlaying.Playing())
	require.False(t, StateIdle.Playing())
}
