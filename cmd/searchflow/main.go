package main

import (
	"os"

	"github.com/elastiflow/searchflow/cmd/searchflow/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
