// Package main is the entry point for the smoketest CLI.
package main

import (
	"os"

	"github.com/vvdec/smoketest/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
