package wire

import (
	"io"
	"io/ioutil"
)

// MsgUnknown implements the Message interface and is the fallback for
// messages whose command has no registered type.  The payload is captured as
// a verbatim byte dump, which consumes exactly the number of bytes the header
// declared and therefore keeps the stream aligned on the next message
// boundary even when the command is not understood.
//
// MsgUnknown is produced by ReadMessage; it is never selected by command
// lookup since, by definition, its command is whatever unrecognized string
// the header carried.
type MsgUnknown struct {
	// Cmd is the unrecognized command string from the message header,
	// preserved verbatim for diagnostics and round-tripping.
	Cmd string

	// Data is the raw payload.
	Data []byte
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.  The entire remaining
// input is consumed.
func (msg *MsgUnknown) BtcDecode(r io.Reader, pver uint32, enc MessageEncoding) error {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return err
	}
	msg.Data = data
	return nil
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding.
// This is part of the Message interface implementation.
func (msg *MsgUnknown) BtcEncode(w io.Writer, pver uint32, enc MessageEncoding) error {
	_, err := w.Write(msg.Data)
	return err
}

// Command returns the protocol command string for the message.  This is part
// of the Message interface implementation.
func (msg *MsgUnknown) Command() string {
	return msg.Cmd
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.  This is part of the Message interface implementation.  Since
// nothing is known about the message, only the overall message limit applies.
func (msg *MsgUnknown) MaxPayloadLength(pver uint32) uint32 {
	return MaxMessagePayload
}

// NewMsgUnknown returns a new unknown-command fallback message for the given
// command string.
func NewMsgUnknown(command string) *MsgUnknown {
	return &MsgUnknown{
		Cmd: command,
	}
}
