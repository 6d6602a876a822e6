package main

import (
	"os"

	"github.com/watchtree/watchtree/cmd/wtree/cmds"
)

func main() {
	if err := cmds.New(false).Execute(); err != nil {
		os.Exit(1)
	}
}
