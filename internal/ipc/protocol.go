// Package ipc carries control commands to the running session over a unix
// socket: the CLI analog of the original UI's stop and interrupt buttons.
package ipc

// Request is one newline-delimited JSON command frame.
type Request struct {
	ID      string `json:"id,omitempty"`
	Command string `json:"command"`
}

// Response answers a request. ID echoes the request correlation id.
type Response struct {
	ID      string `json:"id,omitempty"`
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Supported commands.
const (
	CommandStatus    = "status"
	CommandStop      = "stop"
	CommandInterrupt = "interrupt"
	CommandCancel    = "cancel"
	CommandToggle    = "toggle"
)
