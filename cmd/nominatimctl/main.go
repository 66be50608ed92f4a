package main

import (
	"os"

	"nominatim-indexer/cmd/nominatimctl/tool/cmd"

	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
