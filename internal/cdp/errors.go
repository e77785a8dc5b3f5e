// File: internal/cdp/errors.go
package cdp

import (
	"errors"
	"fmt"
)

var (
	// ErrConnect wraps a failure to reach or keep the debug websocket.
	ErrConnect = errors.New("debug endpoint unreachable")

	// ErrClosed is returned when a command is issued on a closed channel.
	ErrClosed = errors.New("debug channel is closed")
)

// ProtocolError reports a transport failure while a command was in flight:
// the connection dropped, a frame could not be written, or a response could
// not be decoded.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol failure during %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// CommandError is the protocol-level error member of a response, reported by
// the browser itself (e.g. unknown method, bad params).
type CommandError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command rejected by browser (code %d): %s", e.Code, e.Message)
}

// JSError reports that the evaluated script raised; Description carries the
// engine's own message. The channel never retries these, callers decide.
type JSError struct {
	Description string
}

func (e *JSError) Error() string {
	return "script error: " + e.Description
}

// UnknownResultError reports an evaluation result whose shape this client
// does not recognize. The raw payload is kept for diagnosis on purpose;
// swallowing unknown shapes would hide protocol drift.
type UnknownResultError struct {
	Raw string
}

func (e *UnknownResultError) Error() string {
	return "unrecognized evaluation result: " + e.Raw
}
