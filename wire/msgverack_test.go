package wire

import (
	"bytes"
	"testing"
)

// TestEmptyPayloadMessages tests the API of the messages which carry no
// payload: verack, getaddr, sendheaders, and wtxidrelay.
func TestEmptyPayloadMessages(t *testing.T) {
	pver := ProtocolVersion

	tests := []struct {
		msg     Message
		wantCmd string
	}{
		{NewMsgVerAck(), "verack"},
		{NewMsgGetAddr(), "getaddr"},
		{NewMsgSendHeaders(), "sendheaders"},
		{NewMsgWTxIdRelay(), "wtxidrelay"},
	}

	t.Logf("Running %d tests", len(tests))
	for i, test := range tests {
		if cmd := test.msg.Command(); cmd != test.wantCmd {
			t.Errorf("#%d: wrong command - got %v want %v", i, cmd,
				test.wantCmd)
		}

		// Ensure max payload is expected value.
		if mpl := test.msg.MaxPayloadLength(pver); mpl != 0 {
			t.Errorf("#%d (%s): wrong max payload length - got %v, "+
				"want 0", i, test.wantCmd, mpl)
		}

		// Encoding must produce no bytes.
		var buf bytes.Buffer
		if err := test.msg.BtcEncode(&buf, pver, BaseEncoding); err != nil {
			t.Errorf("#%d (%s): BtcEncode error %v", i, test.wantCmd,
				err)
		}
		if buf.Len() != 0 {
			t.Errorf("#%d (%s): BtcEncode wrote %d bytes, want 0", i,
				test.wantCmd, buf.Len())
		}

		// Decoding must consume no bytes.
		r := bytes.NewReader([]byte{0x01})
		if err := test.msg.BtcDecode(r, pver, BaseEncoding); err != nil {
			t.Errorf("#%d (%s): BtcDecode error %v", i, test.wantCmd,
				err)
		}
		if r.Len() != 1 {
			t.Errorf("#%d (%s): BtcDecode consumed bytes", i,
				test.wantCmd)
		}
	}
}
