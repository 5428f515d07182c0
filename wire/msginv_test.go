package wire

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/davecgh/go-spew/spew"
)

// TestInv tests the MsgInv API.
func TestInv(t *testing.T) {
	pver := ProtocolVersion

	// Ensure the command is expected value.
	wantCmd := "inv"
	msg := NewMsgInv()
	if cmd := msg.Command(); cmd != wantCmd {
		t.Errorf("NewMsgInv: wrong command - got %v want %v",
			cmd, wantCmd)
	}

	// Ensure max payload is expected value.
	// Num inventory vectors (varInt) + max allowed inventory vectors.
	wantPayload := uint32(9 + MaxInvPerMsg*36)
	maxPayload := msg.MaxPayloadLength(pver)
	if maxPayload != wantPayload {
		t.Errorf("MaxPayloadLength: wrong max payload length for "+
			"protocol version %d - got %v, want %v", pver,
			maxPayload, wantPayload)
	}

	// Ensure inventory vectors are added properly.
	hash := chainhash.Hash{}
	iv := NewInvVect(InvTypeBlock, &hash)
	err := msg.AddInvVect(iv)
	if err != nil {
		t.Errorf("AddInvVect: %v", err)
	}
	if msg.InvList[0] != iv {
		t.Errorf("AddInvVect: wrong invvect added - got %v, want %v",
			spew.Sprint(msg.InvList[0]), spew.Sprint(iv))
	}

	// Ensure adding more than the max allowed inventory vectors per
	// message returns an error.
	for i := 0; i < MaxInvPerMsg; i++ {
		err = msg.AddInvVect(iv)
	}
	if err == nil {
		t.Errorf("AddInvVect: expected error on too many inventory " +
			"vectors not received")
	}
}

// TestInvWire tests wire encode and decode of inv messages, including vectors
// whose type identifier has no assigned meaning.
func TestInvWire(t *testing.T) {
	pver := ProtocolVersion

	// Block 203707 hash.
	hashStr := "3264bc2ac36a60840790ba1d475d01367e7c723da941069e9dc"
	blockHash, err := chainhash.NewHashFromStr(hashStr)
	if err != nil {
		t.Fatalf("NewHashFromStr: %v", err)
	}

	// Transaction 1 of block 203707 hash.
	hashStr = "d28a3dc7392bf00a9855ee93dd9a81eff82a2c4fe57fbd42cfe71b487accfaf0"
	txHash, err := chainhash.NewHashFromStr(hashStr)
	if err != nil {
		t.Fatalf("NewHashFromStr: %v", err)
	}

	blockIv := NewInvVect(InvTypeBlock, blockHash)
	txIv := NewInvVect(InvTypeTx, txHash)
	witnessTxIv := NewInvVect(InvTypeWitnessTx, txHash)

	// A vector whose type has no assigned meaning decodes verbatim; the
	// codec does not reject unfamiliar types.
	unassignedIv := NewInvVect(InvType(17), blockHash)

	// Empty inv message.
	noInv := NewMsgInv()

	// Inv message with multiple vectors.
	multiInv := NewMsgInv()
	for _, iv := range []*InvVect{blockIv, txIv, witnessTxIv, unassignedIv} {
		if err := multiInv.AddInvVect(iv); err != nil {
			t.Fatalf("AddInvVect: %v", err)
		}
	}

	tests := []struct {
		in  *MsgInv
		out *MsgInv
	}{
		{noInv, noInv},
		{multiInv, multiInv},
	}

	t.Logf("Running %d tests", len(tests))
	for i, test := range tests {
		var buf bytes.Buffer
		err := test.in.BtcEncode(&buf, pver, BaseEncoding)
		if err != nil {
			t.Errorf("BtcEncode #%d error %v", i, err)
			continue
		}

		var msg MsgInv
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

// TestInvWireErrors performs negative tests against wire encode and decode of
// MsgInv to confirm error paths work correctly.
func TestInvWireErrors(t *testing.T) {
	pver := ProtocolVersion

	// A declared count above the per-message limit must fail before any
	// vector is read.
	var buf bytes.Buffer
	if err := WriteVarInt(&buf, pver, MaxInvPerMsg+1); err != nil {
		t.Fatalf("WriteVarInt: %v", err)
	}
	var msg MsgInv
	err := msg.BtcDecode(bytes.NewReader(buf.Bytes()), pver, BaseEncoding)
	if _, ok := err.(*MessageError); !ok {
		t.Fatalf("BtcDecode: got error %T (%v), want *MessageError",
			err, err)
	}

	// A truncated inventory vector must fail with a read error.
	buf.Reset()
	if err := WriteVarInt(&buf, pver, 1); err != nil {
		t.Fatalf("WriteVarInt: %v", err)
	}
	buf.Write([]byte{0x02, 0x00, 0x00, 0x00, 0x01, 0x02})
	err = msg.BtcDecode(bytes.NewReader(buf.Bytes()), pver, BaseEncoding)
	if err == nil {
		t.Fatal("BtcDecode: expected short read error")
	}
}

// TestInvVectStringer tests the stringized output for inventory vector types.
func TestInvVectStringer(t *testing.T) {
	tests := []struct {
		in   InvType
		want string
	}{
		{InvTypeError, "ERROR"},
		{InvTypeTx, "MSG_TX"},
		{InvTypeBlock, "MSG_BLOCK"},
		{InvTypeFilteredBlock, "MSG_FILTERED_BLOCK"},
		{InvTypeWitnessTx, "MSG_WITNESS_TX"},
		{InvTypeWitnessBlock, "MSG_WITNESS_BLOCK"},
		{0xffffffff, "Unknown InvType (4294967295)"},
	}

	t.Logf("Running %d tests", len(tests))
	for i, test := range tests {
		result := test.in.String()
		if result != test.want {
			t.Errorf("String #%d\n got: %s want: %s", i, result,
				test.want)
			continue
		}
	}
}

// TestInvWitnessFlag ensures the witness inventory types are the base types
// with the witness bit set.
func TestInvWitnessFlag(t *testing.T) {
	if InvTypeWitnessTx != InvTypeTx|InvWitnessFlag {
		t.Error("InvTypeWitnessTx missing witness flag bit")
	}
	if InvTypeWitnessBlock != InvTypeBlock|InvWitnessFlag {
		t.Error("InvTypeWitnessBlock missing witness flag bit")
	}
	if InvTypeFilteredWitnessBlock != InvTypeFilteredBlock|InvWitnessFlag {
		t.Error("InvTypeFilteredWitnessBlock missing witness flag bit")
	}
}
