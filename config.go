package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcutil"
)

const (
	defaultLogDirname  = "logs"
	defaultLogFilename = "bittune.log"
	defaultDataDirname = "data"
	defaultDbFilename  = "addrbook.db"
	defaultLogLevel    = "info"
	defaultMinPeers    = 2
)

var (
	defaultHomeDir = btcutil.AppDataDir("bittune", false)
	defaultDataDir = filepath.Join(defaultHomeDir, defaultDataDirname)
	defaultLogDir  = filepath.Join(defaultHomeDir, defaultLogDirname)
)

// config defines the configuration options shared by the subcommands.
//
// See loadConfig for details on the configuration load process.
type config struct {
	DataDir           string   `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir            string   `long:"logdir" description:"Directory to log output."`
	DebugLevel        string   `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	TestNet           bool     `long:"testnet" description:"Use the test network"`
	MinPeers          int      `long:"minpeers" description:"Minimum number of live peers to find before connecting"`
	Connect           []string `long:"connect" description:"Connect only to the specified peers at startup"`
	UserAgentComments []string `long:"uacomment" description:"Comment to add to the user agent -- See BIP 14 for more information."`
	NoRelayTx         bool     `long:"norelaytx" description:"Request peers not to relay transactions until a filter is loaded"`
}

// loadConfig initializes the configuration from defaults and the options
// already populated by the command line parser, then sets up logging.
//
// The logger variables may only be used after this returns successfully since
// log rotation is initialized here.
func (cfg *config) loadConfig() error {
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.LogDir == "" {
		cfg.LogDir = defaultLogDir
	}
	if cfg.DebugLevel == "" {
		cfg.DebugLevel = defaultLogLevel
	}
	if cfg.MinPeers == 0 {
		cfg.MinPeers = defaultMinPeers
	}
	if cfg.MinPeers < 0 {
		str := "%s: the minpeers option must be a positive value -- parsed [%d]"
		err := fmt.Errorf(str, "loadConfig", cfg.MinPeers)
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	// Multiple networks can't be selected simultaneously, so there is no
	// count to check here.  Choose the network parameters up front since
	// both the data paths and the wire magic depend on them.
	if cfg.TestNet {
		activeNetParams = &testNetParams
	}

	// Append the network type to the data and log directories so it is
	// "namespaced" per network.
	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	cfg.DataDir = filepath.Join(cfg.DataDir, netName(activeNetParams))
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.LogDir = filepath.Join(cfg.LogDir, netName(activeNetParams))

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create data directory: %v\n", err)
		return err
	}

	// Initialize log rotation.  After log rotation has been initialized,
	// the logger variables may be used.
	initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))

	// Parse, validate, and set debug log level.
	if !validLogLevel(cfg.DebugLevel) {
		str := "%s: the specified debug level [%v] is invalid"
		err := fmt.Errorf(str, "loadConfig", cfg.DebugLevel)
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	setLogLevels(cfg.DebugLevel)

	return nil
}

// dbPath returns the path to the address book database for the active
// network.
func (cfg *config) dbPath() string {
	return filepath.Join(cfg.DataDir, defaultDbFilename)
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if len(path) > 1 && path[:2] == "~/" {
		homeDir := filepath.Dir(defaultHomeDir)
		path = filepath.Join(homeDir, path[2:])
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
