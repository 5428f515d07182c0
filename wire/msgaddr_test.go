package wire

import (
	"bytes"
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
)

// TestAddr tests the MsgAddr API.
func TestAddr(t *testing.T) {
	pver := ProtocolVersion

	// Ensure the command is expected value.
	wantCmd := "addr"
	msg := NewMsgAddr()
	if cmd := msg.Command(); cmd != wantCmd {
		t.Errorf("NewMsgAddr: wrong command - got %v want %v",
			cmd, wantCmd)
	}

	// Ensure max payload is expected value.
	// Num addresses (varInt) + max allowed addresses.
	wantPayload := uint32(9 + MaxAddrPerMsg*30)
	maxPayload := msg.MaxPayloadLength(pver)
	if maxPayload != wantPayload {
		t.Errorf("MaxPayloadLength: wrong max payload length for "+
			"protocol version %d - got %v, want %v", pver,
			maxPayload, wantPayload)
	}

	// Ensure TimestampedNetAddresses are added properly.
	ts := time.Unix(0x495fab29, 0)
	na := NewTimestampedNetAddress(ts,
		NewNetAddressIPPort(net.ParseIP("127.0.0.1"), 8333, nil))
	err := msg.AddAddress(na)
	if err != nil {
		t.Errorf("AddAddress: %v", err)
	}
	if msg.AddrList[0] != na {
		t.Errorf("AddAddress: wrong address added - got %v, want %v",
			spew.Sprint(msg.AddrList[0]), spew.Sprint(na))
	}

	// Ensure the address list is cleared properly.
	msg.ClearAddresses()
	if len(msg.AddrList) != 0 {
		t.Errorf("ClearAddresses: address list is not empty - "+
			"got %v [%v], want %v", len(msg.AddrList),
			spew.Sprint(msg.AddrList[0]), 0)
	}

	// Ensure adding more than the max allowed addresses per message returns
	// error.
	for i := 0; i < MaxAddrPerMsg+1; i++ {
		err = msg.AddAddress(na)
	}
	if err == nil {
		t.Errorf("AddAddress: expected error on too many addresses " +
			"not received")
	}
	err = msg.AddAddresses(na)
	if err == nil {
		t.Errorf("AddAddresses: expected error on too many addresses " +
			"not received")
	}
}

// TestAddrWire tests wire encode and decode of addr messages with a varying
// number of entries.
func TestAddrWire(t *testing.T) {
	pver := ProtocolVersion

	ts := time.Unix(0x495fab29, 0)
	na := NewTimestampedNetAddress(ts,
		NewNetAddressIPPort(net.ParseIP("127.0.0.1"), 8333, nil))
	na2 := NewTimestampedNetAddress(ts.Add(time.Hour),
		NewNetAddressIPPort(net.ParseIP("192.168.0.1"), 8334, nil))

	// Empty address list.
	noAddr := NewMsgAddr()

	// Address list with multiple entries.
	multiAddr := NewMsgAddr()
	if err := multiAddr.AddAddresses(na, na2); err != nil {
		t.Fatalf("AddAddresses: %v", err)
	}

	tests := []struct {
		in  *MsgAddr
		out *MsgAddr
	}{
		{noAddr, noAddr},
		{multiAddr, multiAddr},
	}

	t.Logf("Running %d tests", len(tests))
	for i, test := range tests {
		var buf bytes.Buffer
		err := test.in.BtcEncode(&buf, pver, BaseEncoding)
		if err != nil {
			t.Errorf("BtcEncode #%d error %v", i, err)
			continue
		}

		var msg MsgAddr
		err = msg.BtcDecode(bytes.NewReader(buf.Bytes()), pver,
			BaseEncoding)
		if err != nil {
			t.Errorf("BtcDecode #%d error %v", i, err)
			continue
		}
		if !reflect.DeepEqual(&msg, test.out) {
			t.Errorf("BtcDecode #%d\n got: %s want: %s", i,
				spew.Sdump(&msg), spew.Sdump(test.out))
			continue
		}
	}
}

// TestAddrWireErrors performs negative tests against wire encode and decode of
// MsgAddr to confirm error paths work correctly.
func TestAddrWireErrors(t *testing.T) {
	pver := ProtocolVersion

	// A declared count above the per-message limit must fail before any
	// entry is read.
	var buf bytes.Buffer
	if err := WriteVarInt(&buf, pver, MaxAddrPerMsg+1); err != nil {
		t.Fatalf("WriteVarInt: %v", err)
	}
	var msg MsgAddr
	err := msg.BtcDecode(bytes.NewReader(buf.Bytes()), pver, BaseEncoding)
	if _, ok := err.(*MessageError); !ok {
		t.Fatalf("BtcDecode: got error %T (%v), want *MessageError",
			err, err)
	}

	// A count that promises more entries than the payload holds must fail
	// with a read error.
	buf.Reset()
	if err := WriteVarInt(&buf, pver, 2); err != nil {
		t.Fatalf("WriteVarInt: %v", err)
	}
	ts := time.Unix(0x495fab29, 0)
	na := NewTimestampedNetAddress(ts,
		NewNetAddressIPPort(net.ParseIP("127.0.0.1"), 8333, nil))
	if err := WriteTimestampedNetAddress(&buf, pver, na); err != nil {
		t.Fatalf("WriteTimestampedNetAddress: %v", err)
	}
	err = msg.BtcDecode(bytes.NewReader(buf.Bytes()), pver, BaseEncoding)
	if err == nil {
		t.Fatal("BtcDecode: expected short read error")
	}

	// Encoding a message whose list exceeds the limit must fail.
	oversize := NewMsgAddr()
	for i := 0; i < MaxAddrPerMsg; i++ {
		oversize.AddAddress(na)
	}
	oversize.AddrList = append(oversize.AddrList, na)
	buf.Reset()
	err = oversize.BtcEncode(&buf, pver, BaseEncoding)
	if _, ok := err.(*MessageError); !ok {
		t.Fatalf("BtcEncode: got error %T (%v), want *MessageError",
			err, err)
	}
}
