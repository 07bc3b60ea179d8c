package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
	"github.com/vitralabs/maestro/pkg/cmd"
	"github.com/vitralabs/maestro/pkg/log"
	"github.com/vitralabs/maestro/pkg/orchestrator"
	"github.com/vitralabs/maestro/pkg/workflow"
)

func NewExecuteCommand() *cli.Command {
	return &cli.Command{
		Name:      "execute",
		Usage:     "Run a single workflow to completion and print the execution",
		ArgsUsage: "<workflow-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "workflows-path",
				Usage:    "Directory containing workflow definition JSON files",
				Required: true,
				Sources:  cli.EnvVars("WORKFLOWS_PATH"),
			},
			&cli.StringFlag{
				Name:  "input",
				Usage: "JSON object passed as the workflow input",
				Value: "{}",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			workflowID := command.Args().First()
			if workflowID == "" {
				return fmt.Errorf("workflow id argument is required")
			}

			var input map[string]any
			if err := json.Unmarshal([]byte(command.String("input")), &input); err != nil {
				return fmt.Errorf("invalid --input JSON: %w", err)
			}

			log.Setup(command.String("log-level"))
			logger := log.WithModule("maestro")

			bus := cmd.NewBus(logger)
			reg := cmd.NewRegistry(logger, bus)
			defer reg.ShutdownAll(ctx)

			definitions := workflow.NewRepository(logger)
			if _, err := definitions.LoadDirectory(command.String("workflows-path")); err != nil {
				return err
			}

			orch := orchestrator.New(definitions, reg, bus, logger)

			execution, err := orch.ExecuteWorkflow(ctx, workflowID, input)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")

			return encoder.Encode(execution)
		},
	}
}
