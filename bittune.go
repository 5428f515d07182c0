package main

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/bittune/bittune/addrbook"
	"github.com/bittune/bittune/discover"
	"github.com/bittune/bittune/peer"
	"github.com/bittune/bittune/wire"
)

// findPeers returns the addresses to connect to.  When --connect is given the
// listed endpoints are used verbatim, otherwise the compiled-in seed list and
// the DNS seeds are probed until the configured minimum of live peers is
// found.
func findPeers(cfg *config) ([]*wire.NetAddress, error) {
	if len(cfg.Connect) > 0 {
		var addrs []*wire.NetAddress
		for _, a := range cfg.Connect {
			host, portStr, err := net.SplitHostPort(a)
			if err != nil {
				host = a
				portStr = strconv.Itoa(int(activeNetParams.defaultPort))
			}
			port, err := strconv.ParseUint(portStr, 10, 16)
			if err != nil {
				return nil, err
			}
			ip := net.ParseIP(host)
			if ip == nil {
				ips, err := net.LookupIP(host)
				if err != nil || len(ips) == 0 {
					btunLog.Warnf("Skipping unresolvable peer %q", a)
					continue
				}
				ip = ips[0]
			}
			addrs = append(addrs,
				wire.NewNetAddressIPPort(ip, uint16(port), nil))
		}
		return addrs, nil
	}

	candidates := discover.SeedAddrs(activeNetParams.seeds)
	candidates = append(candidates, discover.DNSAddrs(activeNetParams.dnsSeeds,
		activeNetParams.defaultPort)...)
	return discover.Find(cfg.MinPeers, candidates, discover.DefaultDialTimeout)
}

// tuneMain is the real main function for the tune command.  It is necessary
// to work around the fact that deferred functions do not run when os.Exit()
// is called.
func tuneMain(cfg *config) error {
	// Load configuration.  This also initializes logging and configures it
	// accordingly.
	if err := cfg.loadConfig(); err != nil {
		return err
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()
	btunLog.Infof("Version %s", version())

	// Get a channel that will be closed when a shutdown signal has been
	// triggered either from an OS signal such as SIGINT (Ctrl+C) or from
	// another subsystem.
	interrupt := interruptListener()

	book, err := addrbook.Open(cfg.dbPath())
	if err != nil {
		btunLog.Errorf("Unable to open address book: %v", err)
		return err
	}
	defer func() {
		btunLog.Infof("Gracefully shutting down the address book...")
		if err := book.Close(); err != nil {
			btunLog.Errorf("Address book close: %v", err)
		}
	}()

	addrs, err := findPeers(cfg)
	if err != nil {
		btunLog.Errorf("Peer discovery failed: %v", err)
		return err
	}
	if interruptRequested(interrupt) {
		return nil
	}
	btunLog.Infof("Discovered %d live peers on %s", len(addrs),
		netName(activeNetParams))

	// Remember every live endpoint, then talk to the first one that
	// completes the handshake.
	now := time.Now()
	for _, na := range addrs {
		book.Add(wire.NewTimestampedNetAddress(now, na))
	}

	var p *peer.Peer
	for _, na := range addrs {
		p, err = connectPeer(cfg, book, na)
		if err != nil {
			btunLog.Warnf("Connect to %v failed: %v", na.TCPAddr(), err)
			continue
		}
		break
	}
	if p == nil {
		err := errors.New("unable to connect to any discovered peer")
		btunLog.Errorf("%v", err)
		return err
	}
	defer func() {
		btunLog.Infof("Gracefully shutting down peer %v...", p)
		p.Disconnect()
		p.WaitForDisconnect()
	}()

	// Run until the peer drops or an interrupt signal is received.
	disconnected := make(chan struct{})
	go func() {
		p.WaitForDisconnect()
		close(disconnected)
	}()
	select {
	case <-disconnected:
		btunLog.Infof("Peer %v disconnected", p)
	case <-interrupt:
	}
	return nil
}

// peersMain lists the contents of the address book.
func peersMain(cfg *config) error {
	if err := cfg.loadConfig(); err != nil {
		return err
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	book, err := addrbook.Open(cfg.dbPath())
	if err != nil {
		btunLog.Errorf("Unable to open address book: %v", err)
		return err
	}
	defer book.Close()

	addrs, err := book.Addresses()
	if err != nil {
		btunLog.Errorf("Unable to list addresses: %v", err)
		return err
	}
	for _, tna := range addrs {
		btunLog.Infof("%s last seen %v", tna.TCPAddr(), tna.Timestamp)
	}
	btunLog.Infof("%d known addresses", len(addrs))
	return nil
}
