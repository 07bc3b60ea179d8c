package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	root := &cli.Command{
		Name:                  "maestro",
		EnableShellCompletion: true,
		Usage:                 "Capability routing and workflow orchestration",
		Commands: []*cli.Command{
			NewRunCommand(),
			NewExecuteCommand(),
			NewValidateCommand(),
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
