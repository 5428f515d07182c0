package wire

import (
	"io"
)

// MsgWTxIdRelay implements the Message interface and represents a bitcoin
// wtxidrelay message.  It is sent between the version and verack messages to
// signal that transactions should be announced by their witness txid
// (BIP0339).
//
// This message has no payload.
type MsgWTxIdRelay struct{}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgWTxIdRelay) BtcDecode(r io.Reader, pver uint32, enc MessageEncoding) error {
	return nil
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding.
// This is part of the Message interface implementation.
func (msg *MsgWTxIdRelay) BtcEncode(w io.Writer, pver uint32, enc MessageEncoding) error {
	return nil
}

// Command returns the protocol command string for the message.  This is part
// of the Message interface implementation.
func (msg *MsgWTxIdRelay) Command() string {
	return CmdWTxIdRelay
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.  This is part of the Message interface implementation.
func (msg *MsgWTxIdRelay) MaxPayloadLength(pver uint32) uint32 {
	return 0
}

// NewMsgWTxIdRelay returns a new bitcoin wtxidrelay message that conforms to
// the Message interface.
func NewMsgWTxIdRelay() *MsgWTxIdRelay {
	return &MsgWTxIdRelay{}
}
