package main

import (
	"os"

	"github.com/vovakirdan/skyoffice-server/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
