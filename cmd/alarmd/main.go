package main

import (
	"fmt"
	"os"

	"github.com/volk7/alerting/cmd/alarmd/commands"
)

func main() {
	if err := commands.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
