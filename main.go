package main

import (
	"os"

	"cosmterm/cmd"
)

// Version should be set during build
var Version = "dev"

func main() {
	cmd.Version = Version
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
