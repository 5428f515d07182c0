package main

import (
	"github.com/bittune/bittune/discover"
	"github.com/bittune/bittune/wire"
)

// params is used to group parameters for the various networks.
type params struct {
	name        string
	net         wire.BitcoinNet
	defaultPort uint16
	dnsSeeds    []string
	seeds       []discover.Seed
}

// mainNetParams contains parameters specific to the main network.
var mainNetParams = params{
	name:        "mainnet",
	net:         wire.MainNet,
	defaultPort: 8333,
	dnsSeeds:    discover.MainDNSSeeds,
	seeds:       discover.MainSeeds,
}

// testNetParams contains parameters specific to the test network.  The
// compiled-in seed list only covers mainnet, so testnet relies entirely on
// DNS seeds.
var testNetParams = params{
	name:        "testnet",
	net:         wire.TestNet,
	defaultPort: 18333,
	dnsSeeds: []string{
		"testnet-seed.bitcoin.jonasschnelli.ch",
		"seed.tbtc.petertodd.org",
		"seed.testnet.bitcoin.sprovoost.nl",
	},
}

// activeNetParams is a pointer to the parameters specific to the currently
// active bitcoin network.
var activeNetParams = &mainNetParams

// netName returns the name used when referring to a bitcoin network.
func netName(netParams *params) string {
	return netParams.name
}
