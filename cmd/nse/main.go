package main

import (
	"os"

	"github.com/wonny/nsefeed/cmd/nse/commands"
)

// main is the entry point for the nse CLI
// ⭐ Single CLI entry point: go run ./cmd/nse [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
