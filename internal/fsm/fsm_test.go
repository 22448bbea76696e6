package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionStreamingHappyPath(t *testing.T) {
	next, err := Transition(StateIdle, EventConnect)
	require.NoError(t, err)
	require.Equal(t, StateConnecting, next)

	next, err = Transition(next, EventConnected)
	require.NoError(t, err)
	require.Equal(t, StateStreamingCapture, next)

	next, err = Transition(next, EventStopCapture)
	require.NoError(t, err)
	require.Equal(t, StateProcessing, next)

	next, err = Transition(next, EventSpeak)
	require.NoError(t, err)
	require.Equal(t, StateSpeaking, next)

	next, err = Transition(next, EventDrained)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)
}

func TestTransitionFallbackHappyPath(t *testing.T) {
	next, err := Transition(StateIdle, EventRecord)
	require.NoError(t, err)
	require.Equal(t, StateRecordingUtterance, next)

	next, err = Transition(next, EventStopCapture)
	require.NoError(t, err)
	require.Equal(t, StateProcessing, next)

	next, err = Transition(next, EventEmpty)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)
}

func TestTransitionTeardownFromAnyState(t *testing.T) {
	states := []State{
		StateIdle,
		StateConnecting,
		StateStreamingCapture,
		StateRecordingUtterance,
		StateProcessing,
		StateSpeaking,
	}
	for _, state := range states {
		next, err := Transition(state, EventTeardown)
		require.NoError(t, err)
		require.Equal(t, StateIdle, next)
	}
}

func TestTransitionInterruptReturnsToCapture(t *testing.T) {
	next, err := Transition(StateSpeaking, EventInterruptStream)
	require.NoError(t, err)
	require.Equal(t, StateStreamingCapture, next)

	next, err = Transition(StateSpeaking, EventInterruptRecord)
	require.NoError(t, err)
	require.Equal(t, StateRecordingUtterance, next)
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		state State
		event Event
	}{
		{name: "idle stop invalid", state: StateIdle, event: EventStopCapture},
		{name: "idle speak invalid", state: StateIdle, event: EventSpeak},
		{name: "idle drained invalid", state: StateIdle, event: EventDrained},
		{name: "connecting record invalid", state: StateConnecting, event: EventRecord},
		{name: "connecting speak invalid", state: StateConnecting, event: EventSpeak},
		{name: "streaming connect invalid", state: StateStreamingCapture, event: EventConnect},
		{name: "streaming speak invalid", state: StateStreamingCapture, event: EventSpeak},
		{name: "recording interrupt invalid", state: StateRecordingUtterance, event: EventInterruptRecord},
		{name: "processing connect invalid", state: StateProcessing, event: EventConnect},
		{name: "processing drained invalid", state: StateProcessing, event: EventDrained},
		{name: "speaking stop invalid", state: StateSpeaking, event: EventStopCapture},
		{name: "speaking empty invalid", state: StateSpeaking, event: EventEmpty},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.state, next)
			require.Error(t, err)
			require.Contains(t, err.Error(), "invalid transition")
		})
	}
}

func TestCaptureActive(t *testing.T) {
	require.True(t, CaptureActive(StateStreamingCapture))
	require.True(t, CaptureActive(StateRecordingUtterance))
	require.False(t, CaptureActive(StateIdle))
	require.False(t, CaptureActive(StateConnecting))
	require.False(t, CaptureActive(StateProcessing))
	require.False(t, CaptureActive(StateSpeaking))
}
