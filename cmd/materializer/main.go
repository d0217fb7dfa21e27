package main

import (
	"context"
	"fmt"
	"os"

	"budgetbook/internal/cli"
	"budgetbook/internal/clock"
	"budgetbook/internal/core"
	"budgetbook/internal/log"
	"budgetbook/internal/scheduler"
	"budgetbook/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentMaterializer)
	logger.Info("Starting materializer",
		"daily_tick", cfg.SchedulerDailyTick,
		"startup_delay", cfg.SchedulerStartupDelay.String(),
		"sqlite_db", cfg.SQLiteDBPath)

	repo, err := cli.OpenStore(logger, cfg.SQLiteDBPath)
	if err != nil {
		cli.Fatal(logger, "Failed to open ledger store", err)
	}
	defer repo.Close()

	var events services.EventPublisher
	if client := cli.ConnectEvents(logger, cfg); client != nil {
		defer client.Close()
		events = client
	}

	processor := services.NewRecurringProcessor(repo,
		services.NewProjector(cfg.MaxIterationsPerSpec, cfg.HorizonMaxMonths), events)

	sched, err := scheduler.New(func(ctx context.Context, today core.Date) error {
		sum, err := processor.MaterializeAll(ctx, today)
		if err == nil && sum.Failed > 0 {
			logger.Warn("Some specs failed to materialize", "failed", sum.Failed)
		}
		return err
	}, clock.System{}, scheduler.Options{
		DailyTick:    cfg.SchedulerDailyTick,
		StartupDelay: cfg.SchedulerStartupDelay,
	})
	if err != nil {
		cli.Fatal(logger, "Failed to configure scheduler", err)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	sched.Start(ctx)
	<-ctx.Done()
	sched.Stop()
	logger.Info("Materializer shutdown complete")
}
