// Package main is the entry point for the nibb command-line tool.
package main

import (
	"fmt"
	"os"

	"github.com/roguepikachu/nibb/internal/cli"
)

func main() {
	if err := cli.App(cli.OpenFromConfig).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
