// Package main is the CLI entry point for the tobacco-aps scheduling
// engine.
package main

import (
	"fmt"
	"os"

	"github.com/veritas-mfg/tobacco-aps/internal/cli"
)

// Version is the current version of the tobacco-aps binary.
const Version = "1.0.0"

func main() {
	rootCmd := cli.NewRootCommand(Version)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
