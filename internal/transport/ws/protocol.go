package ws

import (
	"github.com/xiaot623/gogo/traceview/internal/navigator"
)

// Message types.
const (
	// Client -> server
	TypeAction = "action"
	TypeReload = "reload"

	// Server -> client
	TypeView  = "view"
	TypeError = "error"
)

// Error codes.
const (
	ErrorCodeInvalidMessage = "INVALID_MESSAGE"
	ErrorCodeUnknownAction  = "UNKNOWN_ACTION"
	ErrorCodeReloadFailed   = "RELOAD_FAILED"
)

// ClientMessage is a message sent by the viewer. Action and NodeID are read
// for TypeAction; RunID optionally switches runs on TypeReload.
type ClientMessage struct {
	Type  string `json:"type"`
	RunID string `json:"run_id,omitempty"`
	navigator.Command
}

// ViewMessage carries the navigator view after each change.
type ViewMessage struct {
	Type  string         `json:"type"`
	Ts    int64          `json:"ts"`
	RunID string         `json:"run_id"`
	View  navigator.View `json:"view"`
}

// ErrorMessage reports a rejected message.
type ErrorMessage struct {
	Type    string `json:"type"`
	Ts      int64  `json:"ts"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
