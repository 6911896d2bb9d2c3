package main

import (
	"os"

	"github.com/layer-3/keyauth/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
