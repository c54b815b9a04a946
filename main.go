package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/eth-state/triedb/cli/state"
)

func newApp() *cli.App {
	ctl := cli.NewApp()
	ctl.Name = "triedb"
	ctl.Version = "0.1.0"
	ctl.Usage = "Ethereum state trie database tool"
	ctl.Commands = state.NewCommands()
	return ctl
}

func main() {
	ctl := newApp()
	if err := ctl.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
