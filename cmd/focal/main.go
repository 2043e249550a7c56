// Package main is the entry point for the focal CLI.
package main

import (
	"os"

	"github.com/ldi/focal/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
