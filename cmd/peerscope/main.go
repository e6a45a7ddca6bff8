package main

import (
	"fmt"
	"os"

	"github.com/mbtcdash/peerscope"
	"github.com/urfave/cli"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[peerscope] %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()
	app.Name = "peerscope"
	app.Version = peerscope.Version() + " commit=" + peerscope.Commit
	app.Usage = "Operator diversity analysis for a bitcoind peer table"
	app.Commands = []cli.Command{
		runCommand,
		analyzeCommand,
		scoreCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}
