// Package main defines the tBTC relayer entry point: a daemon that watches
// L2 deposit reveals, drives them through initialization and finalization on
// L1, and completes Wormhole-bridged redemptions.
package main

import (
	"os"
	"runtime"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/keep-network/tbtc-relayer/relayer/flags"
	"github.com/keep-network/tbtc-relayer/relayer/node"
)

func startNode(ctx *cli.Context) error {
	relayer, err := node.New(ctx)
	if err != nil {
		return err
	}
	relayer.Start()
	return nil
}

func main() {
	app := cli.NewApp()
	cli.AppHelpTemplate = `NAME:
   {{.Name}} - {{.Usage}}
USAGE:
   {{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}
   {{if len .Authors}}
AUTHOR:
   {{range .Authors}}{{ . }}{{end}}
   {{end}}{{if .Commands}}
GLOBAL OPTIONS:
   {{range .VisibleFlags}}{{.}}
   {{end}}{{end}}{{if .Copyright }}
COPYRIGHT:
   {{.Copyright}}
   {{end}}{{if .Version}}
VERSION:
   {{.Version}}
   {{end}}
`
	app.Name = "tbtc-relayer"
	app.Usage = "this is a relayer bridging tBTC deposits and redemptions between L2 chains and Ethereum"
	app.Action = startNode

	app.Flags = []cli.Flag{
		flags.ChainConfigFileFlag,
		flags.DataDirFlag,
		flags.VerbosityFlag,
		flags.APIHostFlag,
		flags.APIPortFlag,
		flags.DisableMonitoringFlag,
		flags.MonitoringHostFlag,
		flags.MonitoringPortFlag,
		flags.GuardianAPIURLFlag,
		flags.L1SubmitterKeyFlag,
	}

	app.Before = func(ctx *cli.Context) error {
		runtime.GOMAXPROCS(runtime.NumCPU())
		level, err := log.ParseLevel(ctx.String(flags.VerbosityFlag.Name))
		if err != nil {
			return err
		}
		log.SetLevel(level)
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
