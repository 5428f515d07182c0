/*
Package wire implements the bitcoin wire protocol.

At a high level, this package provides support for marshalling and
unmarshalling the handshake and gossip messages exchanged between bitcoin
peers.  Each supported message is represented by a concrete type which
implements the Message interface, providing complete control over how the
message is encoded to and decoded from the wire.

Message Overview

Every bitcoin message is framed by a 24-byte header consisting of the network
magic, a 12-byte null-padded ASCII command, the payload length, and a
checksum formed from the first four bytes of the double-SHA256 of the encoded
payload.  The command in the header determines how the payload that follows
is interpreted, so decoding is strictly header first.

Messages with an unrecognized command are not fatal to the stream.  The
payload for such messages is captured verbatim by MsgUnknown which keeps the
reader aligned on the next message boundary and preserves the raw bytes for
diagnostics.

Reading and Writing Messages

The ReadMessage and WriteMessage functions handle the complete framing
described above, including deriving the header length and checksum from the
payload on write and validating both on read.  Use them rather than invoking
BtcEncode and BtcDecode directly unless only the bare payload is wanted.

Errors

Errors returned by this package are either the raw underlying read/write
error, a *MessageError describing malformed structural content, a
*BadNetworkMagicError for a header whose magic names no known network, or a
*UnknownCommandError which ReadMessage internally downgrades into the
MsgUnknown fallback.
*/
package wire
