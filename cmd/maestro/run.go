package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"github.com/vitralabs/maestro/pkg/cmd"
	"github.com/vitralabs/maestro/pkg/log"
	"github.com/vitralabs/maestro/pkg/orchestrator"
	"github.com/vitralabs/maestro/pkg/otelhelper"
	"github.com/vitralabs/maestro/pkg/scheduler"
	"github.com/vitralabs/maestro/pkg/workflow"
)

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Start the orchestration runtime and keep scheduled workflows running",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "workflows-path",
				Usage:    "Directory containing workflow definition JSON files",
				Required: true,
				Sources:  cli.EnvVars("WORKFLOWS_PATH"),
			},
			&cli.StringFlag{
				Name:    "event-channel",
				Usage:   "Event egress channel (none, gochannel, kafka)",
				Value:   "none",
				Sources: cli.EnvVars("EVENT_CHANNEL"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka brokers for the kafka event channel",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringSliceFlag{
				Name:    "schedule",
				Usage:   "Workflow schedule as '<workflow-id>=<cron expression>' (repeatable)",
				Sources: cli.EnvVars("SCHEDULES"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export execution traces over OTLP",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("maestro")

			logger.InfoContext(ctx, "Initializing maestro runtime")

			bus := cmd.NewBus(logger)

			forwarder, err := cmd.NewForwarder(command.String("event-channel"), bus, command.String("kafka-brokers"), logger)
			if err != nil {
				return err
			}

			if forwarder != nil {
				forwarder.Start()

				defer func() {
					if err := forwarder.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close event forwarder", "error", err)
					}
				}()
			}

			reg := cmd.NewRegistry(logger, bus)
			defer reg.ShutdownAll(ctx)

			definitions := workflow.NewRepository(logger)

			loaded, err := definitions.LoadDirectory(command.String("workflows-path"))
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Loaded workflow definitions", "count", loaded)

			var orchOpts []orchestrator.Option

			if command.Bool("tracing") {
				tracer, err := otelhelper.NewTracer(ctx, "maestro")
				if err != nil {
					return fmt.Errorf("failed to initialize tracing: %w", err)
				}

				orchOpts = append(orchOpts, orchestrator.WithTracer(tracer))
			}

			orch := orchestrator.New(definitions, reg, bus, logger, orchOpts...)

			sched := scheduler.New(orch, logger)
			for _, entry := range command.StringSlice("schedule") {
				workflowID, cronExpr, found := strings.Cut(entry, "=")
				if !found {
					return fmt.Errorf("invalid schedule %q, expected '<workflow-id>=<cron expression>'", entry)
				}

				if _, err := sched.Schedule(cronExpr, workflowID, nil); err != nil {
					return err
				}
			}

			sched.Start()
			defer sched.Stop()

			runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.InfoContext(ctx, "Runtime started")
			<-runCtx.Done()
			logger.InfoContext(ctx, "Shutting down")

			return nil
		},
	}
}
