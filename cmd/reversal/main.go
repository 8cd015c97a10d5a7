package main

import (
	"os"

	"github.com/wonny/reversal/cmd/reversal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
