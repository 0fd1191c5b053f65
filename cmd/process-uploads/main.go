package main

import (
	"flag"

	"go-stock-ledger/internal/notify"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/internal/service"
	"go-stock-ledger/pkg/config"
	"go-stock-ledger/pkg/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Drains pending upload batches, or processes one batch by ID. Meant for a
// cron-style worker alongside the API server.
func main() {
	batchID := flag.String("batch-id", "", "process one batch by ID instead of all pending")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	// 2. Setup database
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		log.Fatal(err)
	}

	// 3. Wire the import pipeline; no hub, batch results go to the webhook only
	stockRepo := repository.NewStockRepo(db)
	saleRepo := repository.NewSaleRepo(db)
	uploadRepo := repository.NewUploadRepo(db)
	webhook := notify.NewWebhook(cfg.SyncWebhookURL, log)

	ledgerService := service.NewLedgerService(stockRepo, saleRepo, db, log, nil)
	reconcileService := service.NewReconcileService(stockRepo, saleRepo, ledgerService, db, log)
	importService := service.NewImportService(uploadRepo, reconcileService, cfg.SalesSyncWindow, log, nil, webhook)

	// 4. Process
	if *batchID != "" {
		id, err := uuid.Parse(*batchID)
		if err != nil {
			log.Fatalf("invalid batch ID: %v", err)
		}
		report, err := importService.Process(id)
		if err != nil {
			log.Fatalf("batch %s failed: %v", id, err)
		}
		log.WithFields(logrus.Fields{
			"applied": report.RowsApplied,
			"skipped": report.RowsSkipped,
		}).Info("batch processed")
		return
	}

	processed, err := importService.ProcessPending()
	if err != nil {
		log.Fatal(err)
	}
	log.WithField("batches", processed).Info("pending uploads processed")
}
