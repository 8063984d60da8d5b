package main

import (
	"os"

	"github.com/ecollecte/wastefleet/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
