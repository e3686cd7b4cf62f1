// Package main provides the entry point for the searchctl operator CLI.
package main

import (
	"os"

	"github.com/kailas-cloud/searchcore/cmd/searchctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
