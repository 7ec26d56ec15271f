package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"hisab/internal/amqp"
	"hisab/internal/cache"
	"hisab/internal/cli"
	"hisab/internal/config"
	"hisab/internal/log"
	gsheet "hisab/internal/sheets/google"
	memsheet "hisab/internal/sheets/memory"
	"hisab/internal/worker"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "mirror into an in-memory sheet instead of Google Sheets")
	flag.Parse()

	validate := (*config.Config).ValidateWorker
	if *dryRun {
		validate = (*config.Config).ValidateQueue
	}
	cfg, logger := cli.LoadAndValidateConfig(validate)
	logger = logger.WithComponent(log.ComponentWorker)

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	logger.Info("Starting hisab-worker", "dry_run", *dryRun)

	var mirror *worker.MirrorWorker
	if *dryRun {
		sheet := memsheet.New(cfg.GoogleSheetName)
		mirror = worker.NewMirrorWorker(sheet, sheet)
	} else {
		sheet, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			return
		}
		mirror = worker.NewMirrorWorker(sheet, sheet)
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	if err := mirror.StartupCheck(ctx); err != nil {
		// Not fatal: the first append surfaces the same problem per message.
		logger.Error("Mirror startup check failed", log.FieldError, err, log.FieldOperation, log.OpStartup)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, amqp.Options{Prefetch: cfg.AMQPPrefetch})
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		return
	}
	defer client.Close()

	caches := cache.NewManager()
	caches.Register("mirror_seen", mirror.Seen())
	caches.StartCleanup(10 * time.Minute)
	defer caches.Stop()

	statsTicker := time.NewTicker(time.Hour)
	defer statsTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-statsTicker.C:
				s := mirror.Stats()
				logger.Info("Mirror stats", "mirrored", s.Mirrored, "duplicates", s.Duplicates, "failed", s.Failed)
			}
		}
	}()

	err = client.ConsumeLedgerEvents(ctx, mirror.HandleLedgerEvent)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err, log.FieldOperation, log.OpConsume)
	}

	s := mirror.Stats()
	logger.Info("Worker shutdown complete",
		"mirrored", s.Mirrored,
		"duplicates", s.Duplicates,
		"failed", s.Failed,
		log.FieldOperation, log.OpShutdown)
}
