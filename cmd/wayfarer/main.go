package main

import (
	"os"

	"github.com/fieldrover/wayfarer/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
