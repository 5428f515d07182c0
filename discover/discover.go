// Package discover locates live bitcoin peers to connect to.  Candidate
// endpoints come from a compiled-in seed list and from DNS seeds; candidates
// are probed concurrently with plain TCP dials until the requested number of
// live peers is found.
package discover

import (
	"errors"
	"fmt"
	"net"
	"runtime"
	"time"

	"github.com/bittune/bittune/wire"
)

// DefaultDialTimeout is the timeout used for a single probe dial when the
// caller does not specify one.
const DefaultDialTimeout = 5 * time.Second

// ErrNotEnoughPeers is returned by Find when the candidate list is exhausted
// before the requested minimum number of live peers was reached.
var ErrNotEnoughPeers = errors.New("failed to establish minimum peer connections")

// Seed is a compiled-in candidate endpoint: four IPv4 address bytes followed
// by a big-endian port.
type Seed [6]byte

// Addr returns the seed as a host:port dial string.
func (s Seed) Addr() string {
	port := uint16(s[4])<<8 | uint16(s[5])
	return fmt.Sprintf("%d.%d.%d.%d:%d", s[0], s[1], s[2], s[3], port)
}

// NetAddress returns the seed as a wire network address advertising no
// services.
func (s Seed) NetAddress() *wire.NetAddress {
	port := uint16(s[4])<<8 | uint16(s[5])
	ip := net.IPv4(s[0], s[1], s[2], s[3])
	return wire.NewNetAddressIPPort(ip, port, nil)
}

// MainSeeds is the compiled-in candidate list for the main network.  These
// are long-running listener nodes on the default port 8333 (0x208d big
// endian).
var MainSeeds = []Seed{
	{185, 197, 160, 61, 0x20, 0x8d},
	{74, 220, 255, 190, 0x20, 0x8d},
	{138, 201, 55, 220, 0x20, 0x8d},
	{94, 130, 207, 27, 0x20, 0x8d},
	{172, 105, 21, 224, 0x20, 0x8d},
	{88, 99, 167, 186, 0x20, 0x8d},
	{144, 2, 101, 21, 0x20, 0x8d},
	{78, 20, 227, 205, 0x20, 0x8d},
	{167, 172, 44, 60, 0x20, 0x8d},
	{95, 217, 75, 49, 0x20, 0x8d},
}

// MainDNSSeeds is the list of DNS seeds for the main network.  Each host
// resolves to a rotating set of active node addresses.
var MainDNSSeeds = []string{
	"seed.bitcoin.sipa.be",
	"dnsseed.bluematt.me",
	"seed.bitcoinstats.com",
	"seed.btc.petertodd.org",
	"seed.bitcoin.jonasschnelli.ch",
	"seed.bitcoin.sprovoost.nl",
}

// SeedAddrs converts a compiled-in seed list into wire network addresses.
func SeedAddrs(seeds []Seed) []*wire.NetAddress {
	addrs := make([]*wire.NetAddress, 0, len(seeds))
	for _, seed := range seeds {
		addrs = append(addrs, seed.NetAddress())
	}
	return addrs
}

// DNSAddrs resolves the given DNS seed hosts and returns the results as wire
// network addresses on the given port.  Hosts that fail to resolve are logged
// and skipped rather than aborting the whole lookup.
func DNSAddrs(hosts []string, port uint16) []*wire.NetAddress {
	var addrs []*wire.NetAddress
	for _, host := range hosts {
		ips, err := net.LookupIP(host)
		if err != nil {
			log.Debugf("DNS seed %s lookup failed: %v", host, err)
			continue
		}
		log.Debugf("DNS seed %s resolved %d addresses", host, len(ips))
		for _, ip := range ips {
			addrs = append(addrs, wire.NewNetAddressIPPort(ip, port, nil))
		}
	}
	return addrs
}

// probeResult is the outcome of a single candidate dial.
type probeResult struct {
	na   *wire.NetAddress
	live bool
}

// probe tests whether the candidate is accepting TCP connections within the
// timeout.  The connection is closed immediately; the protocol handshake is
// the peer package's job.
func probe(na *wire.NetAddress, timeout time.Duration) bool {
	addr := na.TCPAddr().String()
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		log.Debugf("Failed to connect to %s: %v", addr, err)
		return false
	}
	conn.Close()
	log.Debugf("Connection established to %s", addr)
	return true
}

// Find probes the candidate addresses until at least min of them have
// accepted a TCP connection and returns the live ones in probe order.
// Candidates are tested concurrently, one in-flight dial per CPU core, so a
// batch of dead candidates costs one timeout rather than one per candidate.
// ErrNotEnoughPeers is returned when the candidate list runs out first.
func Find(min int, candidates []*wire.NetAddress, timeout time.Duration) ([]*wire.NetAddress, error) {
	if min <= 0 {
		return nil, errors.New("minimum peer count must be positive")
	}
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	workers := runtime.NumCPU()
	if workers > len(candidates) {
		workers = len(candidates)
	}

	var live []*wire.NetAddress
	remaining := candidates
	for len(live) < min && len(remaining) > 0 {
		// Probe the next batch, one candidate per worker.
		batch := remaining
		if len(batch) > workers {
			batch = batch[:workers]
		}
		remaining = remaining[len(batch):]

		results := make(chan probeResult, len(batch))
		for _, na := range batch {
			go func(na *wire.NetAddress) {
				results <- probeResult{na: na, live: probe(na, timeout)}
			}(na)
		}
		for range batch {
			result := <-results
			if result.live {
				live = append(live, result.na)
			}
		}
	}

	if len(live) < min {
		return nil, ErrNotEnoughPeers
	}
	return live, nil
}
