package main

import (
	"os"

	"slideshow-renderer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
