package main

import (
	"os"

	"github.com/aiplatform-samples/digit-trainer/cmd/trainer/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
