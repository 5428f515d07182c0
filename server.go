package main

import (
	"fmt"
	"net"
	"time"

	"github.com/bittune/bittune/addrbook"
	"github.com/bittune/bittune/peer"
	"github.com/bittune/bittune/wire"
)

// connectTimeout is the duration allowed for dialing a discovered peer.
const connectTimeout = time.Second * 30

var (
	// userAgentName is the user agent name and is used to help identify
	// ourselves to other bitcoin peers.
	userAgentName = "bittune"

	// userAgentVersion is the user agent version and is used to help
	// identify ourselves to other bitcoin peers.
	userAgentVersion = fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
)

// defaultServices returns the services advertised by this node.  The tuner
// relays nothing, so only the witness flag is set to request witness-aware
// peers.
func defaultServices() *wire.ServicesList {
	services := wire.NewServicesList()
	services.AddFlag(wire.SFNodeWitness)
	return services
}

// newPeerConfig returns the configuration for an outbound peer.  Addresses
// received via addr gossip are queued on the address book and inventory
// announcements are logged.  Pings are answered by the peer itself.
func newPeerConfig(cfg *config, book *addrbook.AddrBook) *peer.Config {
	return &peer.Config{
		UserAgentName:     userAgentName,
		UserAgentVersion:  userAgentVersion,
		UserAgentComments: cfg.UserAgentComments,
		Net:               activeNetParams.net,
		Services:          defaultServices(),
		ProtocolVersion:   peer.MaxProtocolVersion,
		DisableRelayTx:    cfg.NoRelayTx,
		Listeners: peer.MessageListeners{
			OnVersion: func(p *peer.Peer, msg *wire.MsgVersion) {
				btunLog.Infof("Peer %v advertises %s (%s), "+
					"height %d", p, msg.UserAgent,
					msg.Services, msg.StartHeight)
			},
			OnVerAck: func(p *peer.Peer, msg *wire.MsgVerAck) {
				btunLog.Infof("Handshake with %v complete "+
					"(protocol version %d)", p,
					p.ProtocolVersion())

				// Ask for more addresses to keep the book warm.
				p.QueueMessage(wire.NewMsgGetAddr(), nil)
			},
			OnAddr: func(p *peer.Peer, msg *wire.MsgAddr) {
				book.AddAll(msg.AddrList)
				btunLog.Infof("Recorded %d addresses from %v",
					len(msg.AddrList), p)
			},
			OnInv: func(p *peer.Peer, msg *wire.MsgInv) {
				for _, iv := range msg.InvList {
					btunLog.Infof("Peer %v announced %v %v", p,
						iv.Type, iv.Hash)
				}
			},
			OnUnknown: func(p *peer.Peer, msg *wire.MsgUnknown) {
				btunLog.Debugf("Ignoring %s (%d bytes) from %v",
					msg.Cmd, len(msg.Data), p)
			},
		},
	}
}

// connectPeer dials the given address and runs the protocol handshake,
// returning the connected peer.
func connectPeer(cfg *config, book *addrbook.AddrBook, na *wire.NetAddress) (*peer.Peer, error) {
	addr := na.TCPAddr().String()
	p, err := peer.NewOutboundPeer(newPeerConfig(cfg, book), addr)
	if err != nil {
		return nil, err
	}

	conn, err := net.DialTimeout("tcp", addr, connectTimeout)
	if err != nil {
		return nil, err
	}
	p.AssociateConnection(conn)
	return p, nil
}
