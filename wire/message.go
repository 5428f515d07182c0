package wire

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MessageHeaderSize is the number of bytes in a bitcoin message header.
// Bitcoin network (magic) 4 bytes + command 12 bytes + payload length 4 bytes
// + checksum 4 bytes.
const MessageHeaderSize = 24

// CommandSize is the fixed size of all commands in the common bitcoin message
// header.  Shorter commands must be zero padded.
const CommandSize = 12

// MaxMessagePayload is the maximum bytes a message can be regardless of other
// individual limits imposed by messages themselves.
const MaxMessagePayload = (1024 * 1024 * 32) // 32MB

// Commands used in bitcoin message headers which describe the type of message.
const (
	CmdVersion     = "version"
	CmdVerAck      = "verack"
	CmdSendHeaders = "sendheaders"
	CmdWTxIdRelay  = "wtxidrelay"
	CmdGetAddr     = "getaddr"
	CmdAddr        = "addr"
	CmdPing        = "ping"
	CmdPong        = "pong"
	CmdInv         = "inv"
)

// MessageEncoding represents the wire message encoding format to be used.
type MessageEncoding uint32

const (
	// BaseEncoding encodes all messages in the default format specified
	// for the Bitcoin wire protocol.
	BaseEncoding MessageEncoding = 1 << iota

	// WitnessEncoding encodes all messages other than transaction messages
	// using the default Bitcoin wire protocol specification.  For
	// transaction messages, the new encoding format detailed in BIP0144
	// will be used.
	WitnessEncoding
)

// LatestEncoding is the most recently specified encoding for the bitcoin wire
// protocol.
var LatestEncoding = WitnessEncoding

// Message is an interface that describes a bitcoin message.  A type that
// implements Message has complete control over the representation of its data
// and may therefore contain additional or fewer fields than those which
// are used directly in the protocol encoded message.
type Message interface {
	BtcDecode(io.Reader, uint32, MessageEncoding) error
	BtcEncode(io.Writer, uint32, MessageEncoding) error
	Command() string
	MaxPayloadLength(uint32) uint32
}

// makeEmptyMessage creates a message of the appropriate concrete type based
// on the command.  This is the single point where the command read from a
// header selects how the payload that follows is decoded.
func makeEmptyMessage(command string) (Message, error) {
	var msg Message
	switch command {
	case CmdVersion:
		msg = &MsgVersion{}

	case CmdVerAck:
		msg = &MsgVerAck{}

	case CmdSendHeaders:
		msg = &MsgSendHeaders{}

	case CmdWTxIdRelay:
		msg = &MsgWTxIdRelay{}

	case CmdGetAddr:
		msg = &MsgGetAddr{}

	case CmdAddr:
		msg = &MsgAddr{}

	case CmdPing:
		msg = &MsgPing{}

	case CmdPong:
		msg = &MsgPong{}

	case CmdInv:
		msg = &MsgInv{}

	default:
		return nil, &UnknownCommandError{Command: command}
	}
	return msg, nil
}

// messageHeader defines the header structure for all bitcoin protocol
// messages.
type messageHeader struct {
	magic    BitcoinNet // 4 bytes
	command  string     // 12 bytes
	length   uint32     // 4 bytes
	checksum [4]byte    // 4 bytes
}

// readMessageHeader reads a bitcoin message header from r.
func readMessageHeader(r io.Reader) (int, *messageHeader, error) {
	// Since readElement requires known sized input, use ReadFull here to
	// delineate a read error on the header itself from a short payload
	// that follows.
	var headerBytes [MessageHeaderSize]byte
	n, err := io.ReadFull(r, headerBytes[:])
	if err != nil {
		return n, nil, err
	}
	hr := bytes.NewReader(headerBytes[:])

	// Create and populate a messageHeader struct from the raw header
	// bytes.
	hdr := messageHeader{}
	var magic uint32
	var command [CommandSize]byte
	readElements(hr, &magic, &command, &hdr.length, &hdr.checksum)

	// The magic must name a known network.  Anything else is a hard error
	// which carries the raw value for diagnostics.
	switch BitcoinNet(magic) {
	case MainNet, TestNet:
		hdr.magic = BitcoinNet(magic)
	default:
		return n, nil, &BadNetworkMagicError{Magic: magic}
	}

	// Strip trailing zeros from the command string.  An unrecognized
	// command is preserved verbatim here; whether it maps to a concrete
	// message type is decided later by makeEmptyMessage.  The command must
	// still be printable ASCII since anything else means the stream is
	// not positioned on a message boundary.
	hdr.command = string(bytes.TrimRight(command[:], string(rune(0))))
	if !validCommand(hdr.command) {
		str := fmt.Sprintf("invalid command %q", hdr.command)
		return n, nil, messageError("readMessageHeader", str)
	}

	return n, &hdr, nil
}

// writeMessageHeader serializes a bitcoin message header to w.
func writeMessageHeader(w io.Writer, hdr *messageHeader) error {
	var command [CommandSize]byte
	copy(command[:], hdr.command)
	return writeElements(w, uint32(hdr.magic), command, hdr.length,
		hdr.checksum)
}

// WriteMessageN writes a bitcoin Message to w including the necessary header
// information and returns the number of bytes written.  The header length and
// checksum are always derived from the encoded payload, so a header that is
// inconsistent with its payload cannot be produced through this function.
func WriteMessageN(w io.Writer, msg Message, pver uint32, btcnet BitcoinNet) (int, error) {
	return WriteMessageWithEncodingN(w, msg, pver, btcnet, BaseEncoding)
}

// WriteMessage writes a bitcoin Message to w including the necessary header
// information.  This function is the same as WriteMessageN except it doesn't
// return the number of bytes written.
func WriteMessage(w io.Writer, msg Message, pver uint32, btcnet BitcoinNet) error {
	_, err := WriteMessageN(w, msg, pver, btcnet)
	return err
}

// WriteMessageWithEncodingN writes a bitcoin Message to w including the
// necessary header information and returns the number of bytes written.  It
// is the same as WriteMessageN except it also allows the caller to specify
// the message encoding format to be used when serializing wire messages.
func WriteMessageWithEncodingN(w io.Writer, msg Message, pver uint32,
	btcnet BitcoinNet, encoding MessageEncoding) (int, error) {

	totalBytes := 0

	// Enforce max command size.
	command := msg.Command()
	if len(command) > CommandSize {
		str := fmt.Sprintf("command [%s] is too long [max %v]",
			command, CommandSize)
		return totalBytes, messageError("WriteMessage", str)
	}

	// Encode the message payload.
	var bw bytes.Buffer
	err := msg.BtcEncode(&bw, pver, encoding)
	if err != nil {
		return totalBytes, err
	}
	payload := bw.Bytes()
	lenp := len(payload)

	// Enforce maximum overall message payload.
	if lenp > MaxMessagePayload {
		str := fmt.Sprintf("message payload is too large - encoded "+
			"%d bytes, but maximum message payload is %d bytes",
			lenp, MaxMessagePayload)
		return totalBytes, messageError("WriteMessage", str)
	}

	// Enforce maximum message payload based on the message type.
	mpl := msg.MaxPayloadLength(pver)
	if uint32(lenp) > mpl {
		str := fmt.Sprintf("message payload is too large - encoded "+
			"%d bytes, but maximum message payload size for "+
			"messages of type [%s] is %d.", lenp, command, mpl)
		return totalBytes, messageError("WriteMessage", str)
	}

	// Create header for the message.
	hdr := messageHeader{}
	hdr.magic = btcnet
	hdr.command = command
	hdr.length = uint32(lenp)
	copy(hdr.checksum[:], chainhash.DoubleHashB(payload)[0:4])

	// Encode the header for the message.  This is done to a buffer
	// rather than directly to the writer since writeElements doesn't
	// return the number of bytes written.
	hw := bytes.NewBuffer(make([]byte, 0, MessageHeaderSize))
	writeMessageHeader(hw, &hdr)

	// Write the head first.
	n, err := w.Write(hw.Bytes())
	totalBytes += n
	if err != nil {
		return totalBytes, err
	}

	// Only write the payload if there is one, e.g., the verack messages
	// don't have one.
	if len(payload) > 0 {
		n, err = w.Write(payload)
		totalBytes += n
	}

	return totalBytes, err
}

// ReadMessageWithEncodingN reads, validates, and parses the next bitcoin
// Message from r for the provided protocol version, bitcoin network, and
// message encoding.  It returns the number of bytes read in addition to the
// parsed Message and raw bytes which comprise the message.
//
// Decoding is strictly sequential: the header is fully parsed, including
// magic validation, before any payload byte is consumed, and the command from
// the header selects the payload decoder.  A command with no registered type
// is downgraded to MsgUnknown which captures the raw payload so the stream
// stays aligned on the next message boundary.
func ReadMessageWithEncodingN(r io.Reader, pver uint32, btcnet BitcoinNet,
	enc MessageEncoding) (int, Message, []byte, error) {

	totalBytes := 0
	n, hdr, err := readMessageHeader(r)
	totalBytes += n
	if err != nil {
		return totalBytes, nil, nil, err
	}

	// Enforce maximum message payload.
	if hdr.length > MaxMessagePayload {
		str := fmt.Sprintf("message payload is too large - header "+
			"indicates %d bytes, but max message payload is %d "+
			"bytes.", hdr.length, MaxMessagePayload)
		return totalBytes, nil, nil, messageError("ReadMessage", str)
	}

	// Check for messages from the wrong bitcoin network.
	if hdr.magic != btcnet {
		str := fmt.Sprintf("message from other network [%v]", hdr.magic)
		return totalBytes, nil, nil, messageError("ReadMessage", str)
	}

	// Create struct of appropriate message type based on the command.  An
	// unrecognized command is not fatal: the payload is still consumed,
	// as an opaque byte dump, so the caller can resynchronize on the next
	// message.
	command := hdr.command
	msg, err := makeEmptyMessage(command)
	if err != nil {
		if _, ok := err.(*UnknownCommandError); !ok {
			return totalBytes, nil, nil, err
		}
		msg = NewMsgUnknown(command)
	}

	// Check for maximum length based on the message type as a malicious
	// client could otherwise create a well-formed header and set the
	// length to max numbers in order to exhaust the machine's memory.
	mpl := msg.MaxPayloadLength(pver)
	if hdr.length > mpl {
		str := fmt.Sprintf("payload exceeds max length - header "+
			"indicates %v bytes, but max payload size for "+
			"messages of type [%v] is %v.", hdr.length, command, mpl)
		return totalBytes, nil, nil, messageError("ReadMessage", str)
	}

	// Read payload.
	payload := make([]byte, hdr.length)
	n, err = io.ReadFull(r, payload)
	totalBytes += n
	if err != nil {
		return totalBytes, nil, nil, err
	}

	// Test checksum.
	checksum := chainhash.DoubleHashB(payload)[0:4]
	if !bytes.Equal(checksum, hdr.checksum[:]) {
		str := fmt.Sprintf("payload checksum failed - header "+
			"indicates %v, but actual checksum is %v.",
			hdr.checksum, checksum)
		return totalBytes, nil, nil, messageError("ReadMessage", str)
	}

	// Unmarshal message.  NOTE: This must be a *bytes.Buffer since the
	// MsgVersion BtcDecode function requires it.
	pr := bytes.NewBuffer(payload)
	err = msg.BtcDecode(pr, pver, enc)
	if err != nil {
		return totalBytes, nil, nil, err
	}

	return totalBytes, msg, payload, nil
}

// ReadMessageN reads, validates, and parses the next bitcoin Message from r
// for the provided protocol version and bitcoin network.  It returns the
// number of bytes read in addition to the parsed Message and raw bytes which
// comprise the message.
func ReadMessageN(r io.Reader, pver uint32, btcnet BitcoinNet) (int, Message, []byte, error) {
	return ReadMessageWithEncodingN(r, pver, btcnet, BaseEncoding)
}

// ReadMessage reads, validates, and parses the next bitcoin Message from r
// for the provided protocol version and bitcoin network.  It returns the
// parsed Message and raw bytes which comprise the message.  This function
// only differs from ReadMessageN in that it doesn't return the number of
// bytes read.
func ReadMessage(r io.Reader, pver uint32, btcnet BitcoinNet) (Message, []byte, error) {
	_, msg, buf, err := ReadMessageN(r, pver, btcnet)
	return msg, buf, err
}

// validCommand returns whether the command consists solely of printable ASCII
// as required for the 12-byte header field.
func validCommand(command string) bool {
	if !utf8.ValidString(command) {
		return false
	}
	for _, r := range command {
		if r < 0x20 || r > 0x7e {
			return false
		}
	}
	return true
}
