package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/satriadwik/dealroom-be/internal/config"
	"github.com/satriadwik/dealroom-be/internal/domain"
	"github.com/satriadwik/dealroom-be/internal/eventbus"
	"github.com/satriadwik/dealroom-be/internal/handler"
	"github.com/satriadwik/dealroom-be/internal/integrations"
	"github.com/satriadwik/dealroom-be/internal/payment"
	"github.com/satriadwik/dealroom-be/internal/server"
	"github.com/satriadwik/dealroom-be/internal/service"
	"github.com/satriadwik/dealroom-be/internal/storage"
	"github.com/satriadwik/dealroom-be/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.New(cfg.Logging.Level)
	defer log.Sync()

	ctx := context.Background()
	log.Info(ctx, "Starting application")

	bus := eventbus.New(log, &eventbus.Config{
		ChannelBuffer: cfg.EventBus.ChannelBufferSize,
		MaxRetries:    cfg.Worker.MaxRetries,
	})
	publisher := eventbus.NewStatusChangePublisher(bus, log)

	var repo domain.TransactionRepository
	if cfg.Mongo.URI != "" {
		client, err := storage.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			log.Fatal(ctx, "Failed to connect to mongodb", "error", err)
		}
		repo = storage.NewMongoStore(client, cfg.Mongo.Database, publisher)
		log.Info(ctx, "Mongo repository initialized", "database", cfg.Mongo.Database)
	} else {
		repo = storage.NewMemoryStore(publisher)
		log.Info(ctx, "In-memory repository initialized")
	}

	var sessions payment.SessionStore
	if cfg.Redis.Addr != "" {
		client, err := payment.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			log.Fatal(ctx, "Failed to connect to redis", "error", err)
		}
		sessions = payment.NewRedisSessionStore(client)
		log.Info(ctx, "Redis session store initialized")
	} else {
		sessions = payment.NewMemorySessionStore()
	}

	catalog := integrations.NewMemoryListingCatalog()
	documents := integrations.NewMemoryDocumentStore()
	messages := integrations.NewMemoryMessageLog()
	notifier := integrations.NewLoggingNotifier(log)

	notificationConsumer := eventbus.NewNotificationConsumer(repo, notifier, log, cfg.Worker.PoolSize)
	if err := bus.Subscribe(eventbus.EventTypeStatusChanged, notificationConsumer); err != nil {
		log.Fatal(ctx, "Failed to subscribe consumer", "error", err)
	}
	if err := bus.Start(ctx); err != nil {
		log.Fatal(ctx, "Failed to start event bus", "error", err)
	}

	gateway := payment.NewSimulatedGateway(cfg.Gateway.BaseURL)
	reconciler := payment.NewReconciler(repo, gateway, sessions, documents, notifier, log, cfg.Gateway.SessionTTL)
	poller := payment.NewPoller(repo, log, cfg.Poller.Interval, cfg.Poller.MaxAttempts)
	dealService := service.NewDealService(repo, catalog, documents, messages, log)
	log.Info(ctx, "Services initialized")

	transactionHandler := handler.NewTransactionHandler(dealService, log)
	paymentHandler := handler.NewPaymentHandler(reconciler, poller, log)
	listingHandler := handler.NewListingHandler(catalog)
	healthHandler := handler.NewHealthHandler()

	srv := server.New(cfg, log, transactionHandler, paymentHandler, listingHandler, healthHandler)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal(ctx, "Failed to start HTTP server", "error", err)
		}
	}()

	log.Info(ctx, "Application started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info(ctx, "Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "HTTP server shutdown error", "error", err)
	}

	if err := bus.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "Event bus shutdown error", "error", err)
	}

	log.Info(ctx, "Application stopped gracefully")
}
