package main

import (
	"os"

	mgctlcmd "github.com/mediguide/mgctl/pkg/mgctl/cmd"
)

func main() {
	root := mgctlcmd.NewRootCommand(mgctlcmd.DefaultConfig())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
