package main

import (
	"os"

	"dealroom/api/cmd/dealctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
