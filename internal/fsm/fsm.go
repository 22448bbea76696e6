// Package fsm defines the session state machine as a pure transition table.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle               State = "idle"
	StateConnecting         State = "connecting"
	StateStreamingCapture   State = "streaming_capture"
	StateRecordingUtterance State = "recording_utterance"
	StateProcessing         State = "processing"
	StateSpeaking           State = "speaking"
)

const (
	EventConnect         Event = "connect"
	EventConnected       Event = "connected"
	EventRecord          Event = "record"
	EventStopCapture     Event = "stop_capture"
	EventSpeak           Event = "speak"
	EventEmpty           Event = "empty"
	EventDrained         Event = "drained"
	EventInterruptStream Event = "interrupt_stream"
	EventInterruptRecord Event = "interrupt_record"
	EventTeardown        Event = "teardown"
)

// Transition applies one event to the current state. EventTeardown is valid
// from every state and always lands on idle; it takes priority over any
// other in-flight transition.
func Transition(current State, event Event) (State, error) {
	if event == EventTeardown {
		return StateIdle, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventConnect:
			return StateConnecting, nil
		case EventRecord:
			return StateRecordingUtterance, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateConnecting:
		switch event {
		case EventConnected:
			return StateStreamingCapture, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStreamingCapture, StateRecordingUtterance:
		switch event {
		case EventStopCapture:
			return StateProcessing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateProcessing:
		switch event {
		case EventSpeak:
			return StateSpeaking, nil
		case EventEmpty:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSpeaking:
		switch event {
		case EventDrained:
			return StateIdle, nil
		case EventInterruptStream:
			return StateStreamingCapture, nil
		case EventInterruptRecord:
			return StateRecordingUtterance, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// CaptureActive reports whether the state may hold a live capture handle.
func CaptureActive(state State) bool {
	return state == StateStreamingCapture || state == StateRecordingUtterance
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
