package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/computerscienceiscool/code-animator/pkg/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		// Rejections have already been printed
		if !errors.Is(err, cli.ErrRequestFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
