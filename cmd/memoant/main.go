package main

import (
	"os"

	"github.com/codebuildervaibhav/memoant/internal/cli"
	"github.com/codebuildervaibhav/memoant/internal/output"
)

func main() {
	if err := cli.NewRootCmd(&cli.Dependencies{}).Execute(); err != nil {
		output.NewFormatter(os.Stderr).Error(err.Error())
		os.Exit(1)
	}
}
