package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"budgetbook/internal/amqp"
	"budgetbook/internal/cli"
	"budgetbook/internal/core"
	"budgetbook/internal/log"
	"budgetbook/internal/sheets/google"
	"budgetbook/internal/worker"
)

const reconnectDelay = 5 * time.Second

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)
	logger.Info("Starting sheets-sync-worker", "spreadsheet", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "AMQP_URL is required for the sync worker", errors.New("missing AMQP_URL"))
	}
	if !cfg.SheetsEnabled() {
		cli.Fatal(logger, "Google Sheets is not configured",
			errors.New("set GOOGLE_SPREADSHEET_ID and service account credentials"))
	}

	repo, err := cli.OpenStore(logger, cfg.SQLiteDBPath)
	if err != nil {
		cli.Fatal(logger, "Failed to open ledger store", err)
	}
	defer repo.Close()

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	mirror, err := google.New(ctx, google.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
	}

	w := worker.NewSyncWorker(repo, mirror, 100)

	// Optional catch-up for one owner, e.g. after the sheet was recreated.
	if owner := os.Getenv("SYNC_BACKFILL_OWNER"); owner != "" {
		if _, _, err := w.Backfill(ctx, core.OwnerID(owner)); err != nil {
			logger.Error("Backfill failed", "owner_id", owner, "error", err)
		}
	}

	for ctx.Err() == nil {
		err := consume(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, w)
		if ctx.Err() != nil {
			break
		}
		logger.Warn("Consumer stopped, reconnecting", "error", err, "delay", reconnectDelay.String())
		select {
		case <-ctx.Done():
		case <-time.After(reconnectDelay):
		}
	}
	logger.Info("sheets-sync-worker shutdown complete")
}

func consume(ctx context.Context, url, exchange, queue string, w *worker.SyncWorker) error {
	client, err := amqp.NewClient(url, exchange, queue)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.ConsumeEntryEvents(ctx, w.HandleEvent)
}
