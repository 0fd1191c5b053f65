package main

import (
	"os"
	"os/signal"
	"syscall"

	"go-stock-ledger/internal/handler"
	"go-stock-ledger/internal/middleware"
	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/notify"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/internal/service"
	"go-stock-ledger/internal/ws"
	"go-stock-ledger/pkg/config"
	"go-stock-ledger/pkg/database"
	jwtpkg "go-stock-ledger/pkg/jwt"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

func main() {
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
	// Auto migrate (use a dedicated migration tool for serious deployments)
	if err := db.AutoMigrate(&model.User{}, &model.Stock{}, &model.Sale{}, &model.UploadedFile{}); err != nil {
		log.Fatal(err)
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatal(err)
	}

	// 3. Setup WebSocket hub
	wsHub := ws.NewHub(log)
	go wsHub.Run()

	// 4. Dependency injection (wiring layers)
	tokens := jwtpkg.NewManager(cfg.JWTSecret)

	stockRepo := repository.NewStockRepo(db)
	saleRepo := repository.NewSaleRepo(db)
	uploadRepo := repository.NewUploadRepo(db)
	userRepo := repository.NewUserRepo(db)

	webhook := notify.NewWebhook(cfg.SyncWebhookURL, log)

	ledgerService := service.NewLedgerService(stockRepo, saleRepo, db, log, wsHub)
	reconcileService := service.NewReconcileService(stockRepo, saleRepo, ledgerService, db, log)
	importService := service.NewImportService(uploadRepo, reconcileService, cfg.SalesSyncWindow, log, wsHub, webhook)
	stockService := service.NewStockService(stockRepo, db, wsHub)
	authService := service.NewAuthService(userRepo, tokens)
	dashService := service.NewDashboardService(stockRepo, saleRepo)

	authHandler := handler.NewAuthHandler(authService)
	stockHandler := handler.NewStockHandler(stockService)
	saleHandler := handler.NewSaleHandler(ledgerService)
	uploadHandler := handler.NewUploadHandler(importService, cfg.UploadDir)
	dashHandler := handler.NewDashboardHandler(dashService)

	// 5. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: "Stock Ledger v1.0",
	})

	// Middleware
	app.Use(logger.New())  // Request logging
	app.Use(recover.New()) // Panic recovery
	app.Use(cors.New())    // CORS

	// 6. Routes
	api := app.Group("/api/v1")

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", middleware.RequireAuth(tokens, userRepo))

	protected.Get("/dashboard/stats", dashHandler.GetStats)

	protected.Get("/stocks", stockHandler.GetStocks)
	protected.Get("/stocks/low", stockHandler.GetLowStocks)
	protected.Get("/stocks/:id", stockHandler.GetStock)
	protected.Post("/stocks", stockHandler.CreateStock)
	protected.Put("/stocks/:id", stockHandler.UpdateStock)
	protected.Delete("/stocks/:id", stockHandler.DeleteStock)

	protected.Get("/sales", saleHandler.GetSales)
	protected.Get("/sales/:id", saleHandler.GetSale)
	protected.Post("/sales", saleHandler.CreateSale)

	protected.Post("/uploads", uploadHandler.SubmitBatch)
	protected.Get("/uploads", uploadHandler.GetRecentBatches)
	protected.Get("/uploads/:id", uploadHandler.GetBatchStatus)
	protected.Post("/uploads/:id/process", uploadHandler.ProcessBatch)

	// WebSocket route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		wsHub.Register <- c
		defer func() { wsHub.Unregister <- c }()

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 7. Graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	if err := app.Shutdown(); err != nil {
		log.WithError(err).Error("shutdown error")
	}
}
