package wire

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
)

// MaxUserAgentLen is the maximum allowed length for the user agent field in a
// version message (MsgVersion).
const MaxUserAgentLen = 256

// DefaultUserAgent for wire in the stack
const DefaultUserAgent = "/bittune:0.1.0/"

// MsgVersion implements the Message interface and represents a bitcoin
// version message.  It is used for a peer to advertise itself as soon as an
// outbound connection is made.  The remote peer then uses this information
// along with its own to negotiate.  The remote peer must then respond with a
// version message of its own containing the negotiated values followed by a
// verack message (MsgVerAck).  This exchange must take place before any
// further communication is allowed to proceed.
type MsgVersion struct {
	// Version of the protocol the node is using.
	ProtocolVersion uint32

	// Bitfield which identifies the enabled services.
	Services *ServicesList

	// Time the message was generated.  This is encoded as a uint64 of
	// unix seconds on the wire.
	Timestamp time.Time

	// Address of the remote peer.
	AddrRecv NetAddress

	// Address of the local peer.
	AddrFrom NetAddress

	// Unique value associated with message that is used to detect self
	// connections.
	Nonce uint64

	// The user agent that generated messsage.  This is a encoded as a
	// varString on the wire.  This has a max length of MaxUserAgentLen.
	UserAgent string

	// Last block seen by the generator of the version message.
	StartHeight uint32

	// Don't announce transactions to peer.
	DisableRelayTx bool
}

// HasService returns whether the specified service is supported by the peer
// that generated the message.
func (msg *MsgVersion) HasService(flag ServiceFlag) bool {
	if msg.Services == nil {
		return false
	}
	return msg.Services.HasFlag(flag)
}

// AddService adds service as a supported service by the peer generating the
// message.
func (msg *MsgVersion) AddService(flag ServiceFlag) error {
	if msg.Services == nil {
		msg.Services = NewServicesList()
	}
	return msg.Services.AddFlag(flag)
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// The version message is special in that the protocol version hasn't been
// negotiated yet.  As a result, the pver field is ignored and any fields which
// are added in new versions are optional.
func (msg *MsgVersion) BtcDecode(r io.Reader, pver uint32, enc MessageEncoding) error {
	buf, ok := r.(*bytes.Buffer)
	if !ok {
		return fmt.Errorf("MsgVersion.BtcDecode reader is not a " +
			"*bytes.Buffer")
	}

	err := readElement(buf, &msg.ProtocolVersion)
	if err != nil {
		return err
	}

	msg.Services, err = readServicesList(buf)
	if err != nil {
		return err
	}

	sec, err := binarySerializer.Uint64(buf, littleEndian)
	if err != nil {
		return err
	}
	msg.Timestamp = time.Unix(int64(sec), 0)

	err = readNetAddress(buf, pver, &msg.AddrRecv)
	if err != nil {
		return err
	}

	err = readNetAddress(buf, pver, &msg.AddrFrom)
	if err != nil {
		return err
	}

	err = readElement(buf, &msg.Nonce)
	if err != nil {
		return err
	}

	userAgent, err := ReadVarString(buf, pver)
	if err != nil {
		return err
	}
	err = validateUserAgent(userAgent)
	if err != nil {
		return err
	}
	msg.UserAgent = userAgent

	err = readElement(buf, &msg.StartHeight)
	if err != nil {
		return err
	}

	// The relay flag is the final byte of the payload.  Some peers omit
	// it, in which case transactions default to being relayed.
	if buf.Len() > 0 {
		var relayTx bool
		err = readElement(buf, &relayTx)
		if err != nil {
			return err
		}
		msg.DisableRelayTx = !relayTx
	}

	return nil
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding.
func (msg *MsgVersion) BtcEncode(w io.Writer, pver uint32, enc MessageEncoding) error {
	err := validateUserAgent(msg.UserAgent)
	if err != nil {
		return err
	}

	err = writeElement(w, msg.ProtocolVersion)
	if err != nil {
		return err
	}

	err = writeServicesList(w, msg.Services)
	if err != nil {
		return err
	}

	err = binarySerializer.PutUint64(w, littleEndian, uint64(msg.Timestamp.Unix()))
	if err != nil {
		return err
	}

	err = writeNetAddress(w, pver, &msg.AddrRecv)
	if err != nil {
		return err
	}

	err = writeNetAddress(w, pver, &msg.AddrFrom)
	if err != nil {
		return err
	}

	err = writeElement(w, msg.Nonce)
	if err != nil {
		return err
	}

	err = WriteVarString(w, pver, msg.UserAgent)
	if err != nil {
		return err
	}

	err = writeElement(w, msg.StartHeight)
	if err != nil {
		return err
	}

	return writeElement(w, !msg.DisableRelayTx)
}

// Command returns the protocol command string for the message.  This is part
// of the Message interface implementation.
func (msg *MsgVersion) Command() string {
	return CmdVersion
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.  This is part of the Message interface implementation.
func (msg *MsgVersion) MaxPayloadLength(pver uint32) uint32 {
	// Protocol version 4 bytes + services 8 bytes + timestamp 8 bytes +
	// remote and local net addresses + nonce 8 bytes + length of user
	// agent (varInt) + max allowed useragent length + last block 4 bytes +
	// relay transactions flag 1 byte.
	return 33 + (maxNetAddressPayload(pver) * 2) + MaxVarIntPayload +
		MaxUserAgentLen
}

// NewMsgVersion returns a new bitcoin version message that conforms to the
// Message interface using the passed parameters and defaults for the
// remaining fields.
func NewMsgVersion(addrRecv *NetAddress, addrFrom *NetAddress, nonce uint64,
	startHeight uint32) *MsgVersion {

	// Limit the timestamp to one second precision since the protocol
	// doesn't support better.
	return &MsgVersion{
		ProtocolVersion: ProtocolVersion,
		Services:        DefaultServicesList(),
		Timestamp:       time.Unix(time.Now().Unix(), 0),
		AddrRecv:        *addrRecv,
		AddrFrom:        *addrFrom,
		Nonce:           nonce,
		UserAgent:       DefaultUserAgent,
		StartHeight:     startHeight,
		DisableRelayTx:  false,
	}
}

// AddUserAgent adds a user agent to the user agent string for the version
// message.  The version string is not defined to any strict format, although
// it is recommended to use the form "major.minor.revision" e.g. "2.6.41".
func (msg *MsgVersion) AddUserAgent(name string, version string,
	comments ...string) error {

	newUserAgent := fmt.Sprintf("%s:%s", name, version)
	if len(comments) != 0 {
		newUserAgent = fmt.Sprintf("%s(%s)", newUserAgent,
			strings.Join(comments, "; "))
	}
	newUserAgent = fmt.Sprintf("%s%s/", msg.UserAgent, newUserAgent)
	err := validateUserAgent(newUserAgent)
	if err != nil {
		return err
	}
	msg.UserAgent = newUserAgent
	return nil
}

// validateUserAgent checks userAgent length against MaxUserAgentLen.
func validateUserAgent(userAgent string) error {
	if len(userAgent) > MaxUserAgentLen {
		str := fmt.Sprintf("user agent too long [len %v, max %v]",
			len(userAgent), MaxUserAgentLen)
		return messageError("MsgVersion", str)
	}
	return nil
}
