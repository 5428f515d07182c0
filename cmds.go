package main

import (
	"fmt"
	"os"
)

// tuneCommand connects to the network and follows a peer.
type tuneCommand struct {
	config
}

var tuneCmd tuneCommand

func (x *tuneCommand) Execute(args []string) error {
	// Work around defer not working after os.Exit().
	if err := tuneMain(&x.config); err != nil {
		os.Exit(1)
	}
	return nil
}

// peersCommand lists the persisted address book.
type peersCommand struct {
	config
}

var peersCmd peersCommand

func (x *peersCommand) Execute(args []string) error {
	// Work around defer not working after os.Exit().
	if err := peersMain(&x.config); err != nil {
		os.Exit(1)
	}
	return nil
}

// versionCommand prints the application version.
type versionCommand struct{}

var versionCmd versionCommand

func (x *versionCommand) Execute(args []string) error {
	fmt.Println(userAgentName, "version", version())
	return nil
}
