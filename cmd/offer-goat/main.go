package main

import (
	"os"

	"github.com/offer-goat/offer-goat/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
