package main

import (
	"os"

	"github.com/signal-site/relay/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
