package main

import (
	"os"

	"budgetbook/internal/cli"
	"budgetbook/internal/commands"
)

func main() {
	cli.LoadEnvFile()
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
