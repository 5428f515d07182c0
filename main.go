package main

import (
	"os"
	"runtime"

	"github.com/jessevdk/go-flags"
)

var parser = flags.NewParser(nil, flags.Default)

func main() {
	// Use all processor cores.
	runtime.GOMAXPROCS(runtime.NumCPU())

	parser.AddCommand("tune",
		"connect to the bitcoin network",
		"The tune command discovers live peers, performs the protocol "+
			"handshake with one of them, answers pings, records addr "+
			"gossip in the address book, and logs inventory "+
			"announcements until interrupted.",
		&tuneCmd)
	parser.AddCommand("peers",
		"list known peer addresses",
		"The peers command prints every address recorded in the "+
			"persistent address book along with when it was last seen.",
		&peersCmd)
	parser.AddCommand("version",
		"print the version",
		"The version command prints the application version and exits.",
		&versionCmd)

	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}
}
