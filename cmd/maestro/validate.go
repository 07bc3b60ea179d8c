package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	cli "github.com/urfave/cli/v3"
	"github.com/vitralabs/maestro/pkg/log"
	"github.com/vitralabs/maestro/pkg/workflow"
)

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Validate workflow definition files without executing them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "workflows-path",
				Usage:    "Directory containing workflow definition JSON files",
				Required: true,
				Sources:  cli.EnvVars("WORKFLOWS_PATH"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup("error")
			logger := log.WithModule("validate")

			dir := command.String("workflows-path")

			entries, err := os.ReadDir(dir)
			if err != nil {
				return fmt.Errorf("failed to read workflow directory: %w", err)
			}

			definitions := workflow.NewRepository(logger)
			invalid := 0
			checked := 0

			for _, entry := range entries {
				if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
					continue
				}

				checked++
				path := filepath.Join(dir, entry.Name())

				data, err := os.ReadFile(path)
				if err != nil {
					invalid++

					fmt.Printf("FAIL %s: %v\n", path, err)

					continue
				}

				def, err := workflow.ParseDefinition(data)
				if err == nil {
					err = definitions.Register(def)
				}

				if err != nil {
					invalid++

					fmt.Printf("FAIL %s: %v\n", path, err)

					continue
				}

				fmt.Printf("OK   %s (%s, %d steps)\n", path, def.ID, len(def.Steps))
			}

			if invalid > 0 {
				return fmt.Errorf("%d of %d workflow documents invalid", invalid, checked)
			}

			fmt.Printf("All %d workflow documents valid\n", checked)

			return nil
		},
	}
}
