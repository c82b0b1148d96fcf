// Package main provides the entry point for the pretext CLI.
package main

import (
	"os"

	"github.com/pretextml/pretext/cmd/pretext/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
