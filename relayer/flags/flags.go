// Package flags defines the command line flags for the relayer.
package flags

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/urfave/cli/v2"
)

var (
	// VerbosityFlag defines the logrus configuration.
	VerbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity (trace, debug, info=default, warn, error, fatal, panic)",
		Value: "info",
	}
	// DataDirFlag defines the path on disk holding the relayer database.
	DataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the relayer database",
		Value: DefaultDataDir(),
	}
	// ChainConfigFileFlag points to the YAML file describing the chains the
	// relayer serves.
	ChainConfigFileFlag = &cli.StringFlag{
		Name:  "chain-config-file",
		Usage: "Path to the YAML file with the per-chain configuration",
		Value: "chains.yaml",
	}
	// APIHostFlag defines the address the HTTP API binds to.
	APIHostFlag = &cli.StringFlag{
		Name:  "api-host",
		Usage: "Host on which the relayer HTTP API runs",
		Value: "127.0.0.1",
	}
	// APIPortFlag defines the port the HTTP API binds to.
	APIPortFlag = &cli.IntFlag{
		Name:  "api-port",
		Usage: "Port on which the relayer HTTP API runs",
		Value: 7300,
	}
	// DisableMonitoringFlag defines a flag to disable the metrics collection.
	DisableMonitoringFlag = &cli.BoolFlag{
		Name:  "disable-monitoring",
		Usage: "Disable monitoring service.",
	}
	// MonitoringHostFlag defines the host the prometheus endpoint binds to.
	MonitoringHostFlag = &cli.StringFlag{
		Name:  "monitoring-host",
		Usage: "Host used for listening and responding metrics for prometheus",
		Value: "127.0.0.1",
	}
	// MonitoringPortFlag defines the port used by the prometheus service.
	MonitoringPortFlag = &cli.IntFlag{
		Name:  "monitoring-port",
		Usage: "Port used to listening and respond metrics for prometheus",
		Value: 8080,
	}
	// GuardianAPIURLFlag overrides the Guardian REST endpoint queried for
	// signed VAAs.
	GuardianAPIURLFlag = &cli.StringFlag{
		Name:  "guardian-api-url",
		Usage: "Base URL of the Wormhole Guardian REST API",
		Value: "https://api.wormholescan.io",
	}
	// L1SubmitterKeyFlag carries the private key the redemption submitter
	// signs L1 transactions with. Empty disables L1 redemption submission.
	L1SubmitterKeyFlag = &cli.StringFlag{
		Name:    "l1-submitter-key",
		Usage:   "Hex private key used to submit verified redemptions on L1",
		EnvVars: []string{"RELAYER_L1_SUBMITTER_KEY"},
	}
)

// DefaultDataDir is the default data directory to use for the relayer
// database.
func DefaultDataDir() string {
	home := homeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "TbtcRelayer")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Local", "TbtcRelayer")
		} else {
			return filepath.Join(home, ".tbtc-relayer")
		}
	}
	// As we cannot guess a stable location, return empty and handle later.
	return ""
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return ""
}
