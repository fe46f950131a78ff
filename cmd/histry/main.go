package main

import (
	"fmt"
	"os"

	"github.com/svanstrom/histry/internal/cli"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := cli.Run(version); err != nil {
		fmt.Fprintf(os.Stderr, "histry: %v\n", err)
		os.Exit(1)
	}
}
