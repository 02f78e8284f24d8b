// Package main is the entry point for the pagesift CLI.
package main

import (
	"os"

	"github.com/pagesift/pagesift/cmd/pagesift/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
