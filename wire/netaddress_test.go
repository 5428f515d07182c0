package wire

import (
	"bytes"
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
)

// TestNetAddress tests the NetAddress API.
func TestNetAddress(t *testing.T) {
	ip := net.ParseIP("127.0.0.1")
	port := 8333

	// Test NewNetAddress.
	na := NewNetAddress(&net.TCPAddr{IP: ip, Port: port}, nil)

	// Ensure we get the same ip, port, and default services back out.
	if !na.IP.Equal(ip) {
		t.Errorf("NetNetAddress: wrong ip - got %v, want %v", na.IP, ip)
	}
	if na.Port != uint16(port) {
		t.Errorf("NetNetAddress: wrong port - got %v, want %v", na.Port,
			port)
	}
	if na.HasService(SFNodeNetwork) {
		t.Errorf("HasService: SFNodeNetwork service is set")
	}
	if !na.HasService(SFNone) {
		t.Errorf("HasService: default services sentinel is not set")
	}

	// Ensure adding the full node service flag works.
	if err := na.AddService(SFNodeNetwork); err != nil {
		t.Errorf("AddService: %v", err)
	}
	if !na.HasService(SFNodeNetwork) {
		t.Errorf("HasService: SFNodeNetwork service not set")
	}

	// Ensure the address converts back to a dialable TCP address.
	tcpAddr := na.TCPAddr()
	if !tcpAddr.IP.Equal(ip) || tcpAddr.Port != port {
		t.Errorf("TCPAddr: got %v, want %v:%v", tcpAddr, ip, port)
	}

	// Ensure max payload is expected value: services 8 bytes + ip 16 bytes
	// + port 2 bytes.
	pver := ProtocolVersion
	wantPayload := uint32(26)
	maxPayload := maxNetAddressPayload(pver)
	if maxPayload != wantPayload {
		t.Errorf("maxNetAddressPayload: wrong max payload length - "+
			"got %v, want %v", maxPayload, wantPayload)
	}
	if got := maxTimestampedNetAddressPayload(pver); got != wantPayload+4 {
		t.Errorf("maxTimestampedNetAddressPayload: wrong max payload "+
			"length - got %v, want %v", got, wantPayload+4)
	}
}

// TestNetAddressWire tests wire encode and decode for untimestamped network
// addresses, in particular the IPv6-mapped IPv4 form and the big endian port.
func TestNetAddressWire(t *testing.T) {
	services := NewServicesList()
	services.AddFlag(SFNodeNetwork)

	// baseNetAddr is used in the tests as a baseline NetAddress.
	baseNetAddr := NetAddress{
		Services: services,
		IP:       net.ParseIP("127.0.0.1"),
		Port:     8333,
	}

	// baseNetAddrEncoded is the wire encoded bytes of baseNetAddr.
	baseNetAddrEncoded := []byte{
		0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // SFNodeNetwork
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0xff, 0xff, 0x7f, 0x00, 0x00, 0x01, // IP 127.0.0.1
		0x20, 0x8d, // Port 8333 in big-endian
	}

	var buf bytes.Buffer
	err := writeNetAddress(&buf, ProtocolVersion, &baseNetAddr)
	if err != nil {
		t.Fatalf("writeNetAddress: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), baseNetAddrEncoded) {
		t.Fatalf("writeNetAddress\n got: %s want: %s",
			spew.Sdump(buf.Bytes()), spew.Sdump(baseNetAddrEncoded))
	}

	var na NetAddress
	err = readNetAddress(bytes.NewReader(baseNetAddrEncoded),
		ProtocolVersion, &na)
	if err != nil {
		t.Fatalf("readNetAddress: %v", err)
	}
	if !reflect.DeepEqual(&na, &baseNetAddr) {
		t.Fatalf("readNetAddress\n got: %s want: %s", spew.Sdump(na),
			spew.Sdump(baseNetAddr))
	}
}

// TestNetAddressWireErrors performs negative tests against wire encode and
// decode of network addresses to confirm error paths work correctly.
func TestNetAddressWireErrors(t *testing.T) {
	tests := []struct {
		buf []byte // Truncated wire encoding
	}{
		// Force error on services.
		{[]byte{0x01, 0x00, 0x00}},
		// Force error on ip.
		{[]byte{
			0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			0x7f, 0x00,
		}},
		// Force error on port.
		{[]byte{
			0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			0x00, 0x00, 0xff, 0xff, 0x7f, 0x00, 0x00, 0x01,
			0x20,
		}},
	}

	t.Logf("Running %d tests", len(tests))
	for i, test := range tests {
		var na NetAddress
		err := readNetAddress(bytes.NewReader(test.buf),
			ProtocolVersion, &na)
		if err == nil {
			t.Errorf("readNetAddress #%d expected error", i)
			continue
		}
	}
}

// TestTimestampedNetAddressWire tests wire encode and decode for timestamped
// network addresses as used in addr messages.
func TestTimestampedNetAddressWire(t *testing.T) {
	services := NewServicesList()
	services.AddFlag(SFNodeNetwork)

	tna := TimestampedNetAddress{
		Timestamp: time.Unix(0x495fab29, 0), // 2009-01-03 12:15:05 -0600 CST
		NetAddress: NetAddress{
			Services: services,
			IP:       net.ParseIP("127.0.0.1"),
			Port:     8333,
		},
	}

	tnaEncoded := []byte{
		0x29, 0xab, 0x5f, 0x49, // Timestamp
		0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // SFNodeNetwork
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0xff, 0xff, 0x7f, 0x00, 0x00, 0x01, // IP 127.0.0.1
		0x20, 0x8d, // Port 8333 in big-endian
	}

	var buf bytes.Buffer
	err := WriteTimestampedNetAddress(&buf, ProtocolVersion, &tna)
	if err != nil {
		t.Fatalf("WriteTimestampedNetAddress: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), tnaEncoded) {
		t.Fatalf("WriteTimestampedNetAddress\n got: %s want: %s",
			spew.Sdump(buf.Bytes()), spew.Sdump(tnaEncoded))
	}

	var decoded TimestampedNetAddress
	err = ReadTimestampedNetAddress(bytes.NewReader(tnaEncoded),
		ProtocolVersion, &decoded)
	if err != nil {
		t.Fatalf("ReadTimestampedNetAddress: %v", err)
	}
	if !reflect.DeepEqual(&decoded, &tna) {
		t.Fatalf("ReadTimestampedNetAddress\n got: %s want: %s",
			spew.Sdump(decoded), spew.Sdump(tna))
	}
}

// TestNewTimestampedNetAddress ensures construction truncates the timestamp to
// one second precision.
func TestNewTimestampedNetAddress(t *testing.T) {
	na := NewNetAddressIPPort(net.ParseIP("10.0.0.1"), 18333, nil)
	ts := time.Unix(1234567890, 123456789)
	tna := NewTimestampedNetAddress(ts, na)
	if tna.Timestamp.Nanosecond() != 0 {
		t.Fatalf("timestamp not truncated to seconds: %v", tna.Timestamp)
	}
	if tna.Timestamp.Unix() != ts.Unix() {
		t.Fatalf("timestamp changed: got %v, want %v",
			tna.Timestamp.Unix(), ts.Unix())
	}
}
