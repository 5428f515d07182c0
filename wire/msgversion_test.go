package wire

import (
	"bytes"
	"net"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
)

// TestVersion tests the MsgVersion API.
func TestVersion(t *testing.T) {
	pver := ProtocolVersion

	// Create version message data.
	tcpAddrMe := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 8333}
	me := NewNetAddress(tcpAddrMe, nil)
	tcpAddrYou := &net.TCPAddr{IP: net.ParseIP("192.168.0.1"), Port: 8333}
	you := NewNetAddress(tcpAddrYou, nil)
	nonce, err := RandomUint64()
	if err != nil {
		t.Errorf("RandomUint64: error generating nonce: %v", err)
	}

	// Ensure we get the correct data back out.
	msg := NewMsgVersion(me, you, nonce, 0)
	if msg.ProtocolVersion != pver {
		t.Errorf("NewMsgVersion: wrong protocol version - got %v, want %v",
			msg.ProtocolVersion, pver)
	}
	if !reflect.DeepEqual(&msg.AddrRecv, me) {
		t.Errorf("NewMsgVersion: wrong remote address - got %v, want %v",
			spew.Sdump(&msg.AddrRecv), spew.Sdump(me))
	}
	if !reflect.DeepEqual(&msg.AddrFrom, you) {
		t.Errorf("NewMsgVersion: wrong local address - got %v, want %v",
			spew.Sdump(&msg.AddrFrom), spew.Sdump(you))
	}
	if msg.Nonce != nonce {
		t.Errorf("NewMsgVersion: wrong nonce - got %v, want %v",
			msg.Nonce, nonce)
	}
	if msg.UserAgent != DefaultUserAgent {
		t.Errorf("NewMsgVersion: wrong user agent - got %v, want %v",
			msg.UserAgent, DefaultUserAgent)
	}
	if msg.StartHeight != 0 {
		t.Errorf("NewMsgVersion: wrong start height - got %v, want 0",
			msg.StartHeight)
	}
	if msg.DisableRelayTx {
		t.Errorf("NewMsgVersion: relay unexpectedly disabled")
	}
	if msg.Timestamp.Nanosecond() != 0 {
		t.Errorf("NewMsgVersion: timestamp not truncated to seconds")
	}

	// Version message should advertise no services until told otherwise.
	if msg.HasService(SFNodeNetwork) {
		t.Errorf("HasService: SFNodeNetwork service is set")
	}

	// Ensure the command is expected value.
	wantCmd := "version"
	if cmd := msg.Command(); cmd != wantCmd {
		t.Errorf("NewMsgVersion: wrong command - got %v want %v",
			cmd, wantCmd)
	}

	// Ensure max payload is expected value.
	// Protocol version 4 bytes + services 8 bytes + timestamp 8 bytes +
	// remote and local net addresses + nonce 8 bytes + length of user agent
	// (varInt) + max allowed user agent length + last block 4 bytes +
	// relay transactions flag 1 byte.
	wantPayload := uint32(350)
	maxPayload := msg.MaxPayloadLength(pver)
	if maxPayload != wantPayload {
		t.Errorf("MaxPayloadLength: wrong max payload length for "+
			"protocol version %d - got %v, want %v", pver,
			maxPayload, wantPayload)
	}

	// Ensure adding the full service node flag works.
	if err := msg.AddService(SFNodeNetwork); err != nil {
		t.Errorf("AddService: %v", err)
	}
	if !msg.HasService(SFNodeNetwork) {
		t.Errorf("HasService: SFNodeNetwork service not set")
	}
}

// TestVersionWire tests wire encode and decode of version messages with both
// relay flag values.
func TestVersionWire(t *testing.T) {
	pver := ProtocolVersion

	for _, disableRelay := range []bool{false, true} {
		you := NewNetAddressIPPort(net.ParseIP("192.168.0.1"), 8333, nil)
		me := NewNetAddressIPPort(net.ParseIP("127.0.0.1"), 8333, nil)
		msg := NewMsgVersion(you, me, 123123, 0)
		msg.Timestamp = time.Unix(0x495fab29, 0)
		msg.DisableRelayTx = disableRelay

		var buf bytes.Buffer
		err := msg.BtcEncode(&buf, pver, BaseEncoding)
		if err != nil {
			t.Fatalf("BtcEncode: %v", err)
		}

		var decoded MsgVersion
		err = decoded.BtcDecode(bytes.NewBuffer(buf.Bytes()), pver,
			BaseEncoding)
		if err != nil {
			t.Fatalf("BtcDecode: %v", err)
		}
		if !reflect.DeepEqual(&decoded, msg) {
			t.Fatalf("version message (disableRelay %v)\n got: %s "+
				"want: %s", disableRelay, spew.Sdump(&decoded),
				spew.Sdump(msg))
		}
	}
}

// TestVersionOptionalRelay ensures decoding a version payload without the
// trailing relay byte leaves relaying enabled.
func TestVersionOptionalRelay(t *testing.T) {
	pver := ProtocolVersion

	you := NewNetAddressIPPort(net.ParseIP("192.168.0.1"), 8333, nil)
	me := NewNetAddressIPPort(net.ParseIP("127.0.0.1"), 8333, nil)
	msg := NewMsgVersion(you, me, 123123, 0)

	var buf bytes.Buffer
	if err := msg.BtcEncode(&buf, pver, BaseEncoding); err != nil {
		t.Fatalf("BtcEncode: %v", err)
	}

	// Drop the final relay byte from the payload.
	truncated := buf.Bytes()[:buf.Len()-1]
	var decoded MsgVersion
	err := decoded.BtcDecode(bytes.NewBuffer(truncated), pver, BaseEncoding)
	if err != nil {
		t.Fatalf("BtcDecode: %v", err)
	}
	if decoded.DisableRelayTx {
		t.Fatal("BtcDecode: relay disabled for payload without relay byte")
	}
}

// TestVersionWireErrors performs negative tests against wire encode and decode
// of MsgVersion to confirm error paths work correctly.
func TestVersionWireErrors(t *testing.T) {
	pver := ProtocolVersion

	// Use a reader that is not a *bytes.Buffer, which is required by the
	// decoder so it can detect the optional relay byte.
	var msg MsgVersion
	err := msg.BtcDecode(bytes.NewReader([]byte{}), pver, BaseEncoding)
	if err == nil {
		t.Fatal("BtcDecode accepted a reader that is not a *bytes.Buffer")
	}

	// Encoding a version message with a user agent that exceeds the max
	// must fail.
	you := NewNetAddressIPPort(net.ParseIP("192.168.0.1"), 8333, nil)
	me := NewNetAddressIPPort(net.ParseIP("127.0.0.1"), 8333, nil)
	bigAgent := NewMsgVersion(you, me, 123123, 0)
	bigAgent.UserAgent = "/" + strings.Repeat("t", MaxUserAgentLen) + ":0.1/"
	var buf bytes.Buffer
	err = bigAgent.BtcEncode(&buf, pver, BaseEncoding)
	if _, ok := err.(*MessageError); !ok {
		t.Fatalf("BtcEncode: got error %T (%v), want *MessageError",
			err, err)
	}

	// Decoding an oversized user agent must fail the same way.  Build a
	// valid payload and then patch in an oversized agent string.
	small := NewMsgVersion(you, me, 123123, 0)
	small.Timestamp = time.Unix(0x495fab29, 0)
	buf.Reset()
	if err := small.BtcEncode(&buf, pver, BaseEncoding); err != nil {
		t.Fatalf("BtcEncode: %v", err)
	}
	// Fixed fields before the user agent: version 4 + services 8 +
	// timestamp 8 + two addresses 52 + nonce 8.
	prefix := buf.Bytes()[:80]
	patched := make([]byte, 0, len(prefix)+3+MaxUserAgentLen+1)
	patched = append(patched, prefix...)
	var agentLen bytes.Buffer
	WriteVarInt(&agentLen, pver, uint64(MaxUserAgentLen+1))
	patched = append(patched, agentLen.Bytes()...)
	patched = append(patched, bytes.Repeat([]byte{'t'}, MaxUserAgentLen+1)...)
	var decoded MsgVersion
	err = decoded.BtcDecode(bytes.NewBuffer(patched), pver, BaseEncoding)
	if _, ok := err.(*MessageError); !ok {
		t.Fatalf("BtcDecode: got error %T (%v), want *MessageError",
			err, err)
	}
}
