package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetbook/internal/cache"
	"budgetbook/internal/cli"
	"budgetbook/internal/clock"
	"budgetbook/internal/core"
	apphttp "budgetbook/internal/http"
	"budgetbook/internal/log"
	"budgetbook/internal/scheduler"
	"budgetbook/internal/services"
)

const (
	categoryCacheSize = 256
	categoryCacheTTL  = 10 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentApp)
	logger.Info("Starting budgetbook", "port", cfg.Port, "scheduler", cfg.SchedulerEnabled)

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

	clk := clock.System{}
	projector := services.NewProjector(cfg.MaxIterationsPerSpec, cfg.HorizonMaxMonths)
	categories := services.NewCategoryService(repo, categoryCacheSize, categoryCacheTTL)

	caches := cache.NewManager()
	caches.Register(categories.Cache())
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	handler := &apphttp.Handler{
		Entries:    services.NewEntryService(repo, events, cfg.PageSizeDefault, cfg.PageSizeMax),
		Specs:      services.NewSpecService(repo, projector, clk, events, cfg.HorizonDefaultMonths),
		Categories: categories,
		Accounts:   services.NewAccountService(repo),
		Tags:       services.NewTagService(repo),
		Reports:    services.NewReportService(repo, projector, clk, cfg.HorizonDefaultMonths, cfg.HorizonMaxMonths),
		Ready:      repo.Ping,
	}

	var origins []string
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins = strings.Split(v, ",")
	}
	srv, err := apphttp.NewServer(":"+cfg.Port, handler, apphttp.RouterOptions{
		RequestTimeout:     cfg.RequestTimeout,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     origins,
		Logger:             log.Default(log.ComponentHTTP),
	})
	if err != nil {
		cli.Fatal(logger, "Failed to build HTTP server", err)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		reqs, limits := srv.Metrics()
		logger.Info("Shutting down HTTP server",
			"requests", reqs.TotalRequests,
			"server_errors", reqs.ServerErrors,
			"rate_limited", limits.TotalHits)
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.SchedulerEnabled {
		processor := services.NewRecurringProcessor(repo, projector, events)
		sched, err := scheduler.New(func(ctx context.Context, today core.Date) error {
			_, err := processor.MaterializeAll(ctx, today)
			return err
		}, clk, scheduler.Options{
			DailyTick:    cfg.SchedulerDailyTick,
			StartupDelay: cfg.SchedulerStartupDelay,
		})
		if err != nil {
			cli.Fatal(logger, "Failed to configure scheduler", err)
		}
		g.Go(func() error {
			sched.Start(ctx)
			<-ctx.Done()
			sched.Stop()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("budgetbook stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("budgetbook shutdown complete")
}
