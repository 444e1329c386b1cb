package main

import (
	"os"

	"github.com/studyhall-dev/studyhall/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
