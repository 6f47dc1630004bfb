package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/qr-attribution-service/internal/api/http"
	"github.com/spec-kit/qr-attribution-service/internal/api/http/handlers"
	"github.com/spec-kit/qr-attribution-service/internal/auth"
	"github.com/spec-kit/qr-attribution-service/internal/config"
	"github.com/spec-kit/qr-attribution-service/internal/dedup"
	"github.com/spec-kit/qr-attribution-service/internal/events"
	"github.com/spec-kit/qr-attribution-service/internal/observability"
	"github.com/spec-kit/qr-attribution-service/internal/persistence"
	"github.com/spec-kit/qr-attribution-service/internal/provider"
	"github.com/spec-kit/qr-attribution-service/internal/repository"
	"github.com/spec-kit/qr-attribution-service/internal/service"
	"github.com/spec-kit/qr-attribution-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	shortLinkRepo := repository.NewShortLinkRepository(pool)
	scanRepo := repository.NewScanRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewTicketMessageRepository(pool)
	agentRepo := repository.NewAgentRepository(pool)

	var dedupStore dedup.Store
	switch cfg.Dedup.Backend {
	case "postgres":
		dedupStore = dedup.NewPostgresStore(pool, cfg.Dedup.TTL())
	case "memory":
		dedupStore = dedup.NewMemoryStore(cfg.Dedup.TTL())
	default:
		dedupStore = dedup.NewRedisStore(redis.Client, cfg.Dedup.TTL())
	}

	dispatcher := events.NewInMemoryDispatcher()

	kafkaProducer := events.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	kafkaProducer.Forward(dispatcher)
	defer kafkaProducer.Close() //nolint:errcheck

	metrics := observability.NewMetrics()

	helpdesk := provider.New(cfg.Provider)
	logger.Info("ticket provider selected", zap.String("provider", string(helpdesk.Name())))

	shortLinkService := service.NewShortLinkService(shortLinkRepo, cfg.ShortLink.BaseURL, logger)
	scanService := service.NewScanService(shortLinkRepo, scanRepo, dispatcher, logger)
	attributionService := service.NewAttributionService(shortLinkRepo, scanRepo, dispatcher, logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		MessageRepo: messageRepo,
		Provider:    helpdesk,
		RetryPolicy: provider.PolicyFromConfig(cfg.Provider),
		Dispatcher:  dispatcher,
		Logger:      logger,
		Metrics:     metrics,
	})
	agentService := service.NewAgentService(*cfg, agentRepo)

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewMiddleware(agentService.TokenManager(), agentRepo)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		ShortLinks:     handlers.NewShortLinksHandler(shortLinkService),
		Redirect:       handlers.NewRedirectHandler(scanService),
		Webhook:        handlers.NewWebhookHandler(attributionService, ticketService, dedupStore, cfg.Webhook.TwilioAuthToken, logger),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Agents:         handlers.NewAgentsHandler(agentService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
