package main

import (
	"os"

	"github.com/aretelabs/arete/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
