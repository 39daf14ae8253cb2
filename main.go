package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"zapflow/config"
	"zapflow/core"
	"zapflow/gateway"
	"zapflow/hub"
	"zapflow/middleware"
	"zapflow/routes"
	"zapflow/store"
	"zapflow/worker"
)

func main() {
	logger := log.New(os.Stdout, "ZAPFLOW: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Error reporting
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry init failed: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Create Fiber app
	app := fiber.New()
	app.Use(middleware.CORS())

	// Build the sync service: store, gateway, fan-out hub, core.
	// Everything is constructed here and injected; no ambient globals.
	st := store.NewGormStore(config.DB)
	gw := gateway.NewClient(
		config.AppConfig.Evolution.URL,
		config.AppConfig.Evolution.APIKey,
		config.AppConfig.Evolution.Instance,
		logrus.New(),
	)
	fanout := hub.New(log.New(os.Stdout, "HUB: ", log.LstdFlags))
	syncCore := core.New(st, gw, fanout, config.AppConfig.DefaultColumnID, log.New(os.Stdout, "CORE: ", log.LstdFlags))

	// Start broadcast worker
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	broadcastWorker := worker.NewBroadcastWorker(config.DB, syncCore, st, log.New(os.Stdout, "BROADCAST: ", log.LstdFlags))
	go broadcastWorker.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, config.DB, syncCore, fanout, st)

	// Graceful shutdown: stop accepting, close every fan-out session.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		logger.Println("Shutting down...")
		cancel()
		fanout.Close()
		_ = app.Shutdown()
	}()

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
