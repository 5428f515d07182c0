package discover

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/bittune/bittune/wire"
)

// TestSeedAddr ensures compiled-in seeds convert to dial strings and network
// addresses with the port interpreted big endian.
func TestSeedAddr(t *testing.T) {
	seed := Seed{127, 0, 0, 1, 0x20, 0x8d}
	if addr := seed.Addr(); addr != "127.0.0.1:8333" {
		t.Fatalf("Addr: got %s, want 127.0.0.1:8333", addr)
	}

	na := seed.NetAddress()
	if na.Port != 8333 {
		t.Fatalf("NetAddress: got port %d, want 8333", na.Port)
	}
	if !na.IP.Equal(net.ParseIP("127.0.0.1")) {
		t.Fatalf("NetAddress: got ip %v, want 127.0.0.1", na.IP)
	}
	if !na.HasService(wire.SFNone) {
		t.Fatal("NetAddress: seed address advertises services")
	}
}

// TestSeedAddrs ensures the whole seed list converts cleanly.
func TestSeedAddrs(t *testing.T) {
	addrs := SeedAddrs(MainSeeds)
	if len(addrs) != len(MainSeeds) {
		t.Fatalf("SeedAddrs: got %d addresses, want %d", len(addrs),
			len(MainSeeds))
	}
	for i, na := range addrs {
		if na.Port != 8333 {
			t.Fatalf("SeedAddrs #%d: got port %d, want 8333", i,
				na.Port)
		}
	}
}

// localListener returns a listening TCP socket on the loopback interface and
// its address as a wire network address.
func localListener(t *testing.T) (net.Listener, *wire.NetAddress) {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	host, portStr, err := net.SplitHostPort(l.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		t.Fatalf("ParseUint: %v", err)
	}
	return l, wire.NewNetAddressIPPort(net.ParseIP(host), uint16(port), nil)
}

// TestFind exercises the concurrent probe loop against local listeners mixed
// with dead candidates.
func TestFind(t *testing.T) {
	l1, na1 := localListener(t)
	defer l1.Close()
	l2, na2 := localListener(t)
	defer l2.Close()

	// A closed listener gives a port that refuses connections quickly.
	dead, deadNA := localListener(t)
	dead.Close()

	candidates := []*wire.NetAddress{deadNA, na1, deadNA, na2}
	live, err := Find(2, candidates, time.Second)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(live) < 2 {
		t.Fatalf("Find: got %d live peers, want at least 2", len(live))
	}
}

// TestFindNotEnoughPeers ensures the error path triggers when the candidate
// list is exhausted.
func TestFindNotEnoughPeers(t *testing.T) {
	dead, deadNA := localListener(t)
	dead.Close()

	_, err := Find(1, []*wire.NetAddress{deadNA}, time.Second)
	if err != ErrNotEnoughPeers {
		t.Fatalf("Find: got error %v, want %v", err, ErrNotEnoughPeers)
	}

	// An empty candidate list fails the same way.
	_, err = Find(1, nil, time.Second)
	if err != ErrNotEnoughPeers {
		t.Fatalf("Find: got error %v, want %v", err, ErrNotEnoughPeers)
	}

	// A nonsensical minimum is rejected.
	if _, err := Find(0, nil, time.Second); err == nil {
		t.Fatal("Find accepted a zero minimum")
	}
}
