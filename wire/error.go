package wire

import (
	"fmt"
)

// MessageError describes an issue with a message.
// An example of some potential issues are messages from the wrong bitcoin
// network, invalid commands, mismatched checksums, and exceeding max payloads.
//
// This provides a mechanism for the caller to type assert the error to
// differentiate between general io errors such as io.EOF and issues that
// resulted from malformed messages.
type MessageError struct {
	Func        string // Function name
	Description string // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e *MessageError) Error() string {
	if e.Func != "" {
		return fmt.Sprintf("%v: %v", e.Func, e.Description)
	}
	return e.Description
}

// messageError creates an error for the given function and description.
func messageError(f string, desc string) *MessageError {
	return &MessageError{Func: f, Description: desc}
}

// BadNetworkMagicError is returned when the first four bytes of a message
// header do not name a known bitcoin network.  The raw value read from the
// wire is preserved for diagnostics.
type BadNetworkMagicError struct {
	Magic uint32
}

// Error satisfies the error interface and prints human-readable errors.
func (e *BadNetworkMagicError) Error() string {
	return fmt.Sprintf("unknown network magic 0x%08x", e.Magic)
}

// UnknownCommandError is returned by makeEmptyMessage when the command string
// decoded from a message header has no registered message type.  ReadMessage
// catches this specific error and falls back to MsgUnknown so the rest of the
// message can still be consumed.
type UnknownCommandError struct {
	Command string
}

// Error satisfies the error interface and prints human-readable errors.
func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unhandled command [%s]", e.Command)
}
