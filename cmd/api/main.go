package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cloudadept/cloudadept-api/internal/config"
	"github.com/cloudadept/cloudadept-api/internal/database"
	"github.com/cloudadept/cloudadept-api/internal/form"
	"github.com/cloudadept/cloudadept-api/internal/handler"
	"github.com/cloudadept/cloudadept-api/internal/messaging"
	"github.com/cloudadept/cloudadept-api/internal/middleware"
	"github.com/cloudadept/cloudadept-api/internal/router"
	"github.com/cloudadept/cloudadept-api/internal/seo"
	"github.com/cloudadept/cloudadept-api/internal/service"
	"github.com/cloudadept/cloudadept-api/internal/validation"
	"github.com/cloudadept/cloudadept-api/pkg/emailjs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Info().Msg("redis not configured; duplicate submission guard disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = messaging.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	relay := emailjs.New(emailjs.Config{
		ServiceID:  cfg.Delivery.ServiceID,
		TemplateID: cfg.Delivery.TemplateID,
		PublicKey:  cfg.Delivery.PublicKey,
		PrivateKey: cfg.Delivery.PrivateKey,
		Endpoint:   cfg.Delivery.Endpoint,
		Timeout:    cfg.Delivery.Timeout,
	}, logger)
	if !relay.Configured() {
		logger.Warn().Msg("email relay credentials missing or placeholders; contact submissions will be refused")
	}

	delivery := service.NewRelayContactDelivery(relay, cfg.Delivery.RecipientLabel, cfg.Delivery.Location, logger)
	contactService := service.NewContactService(delivery, redisClient, cfg.DedupeTTL, natsConn, cfg.EventsSubjectBase, logger)

	registry := form.NewRegistry(validation.NewContactRules(nil), contactService, cfg.FormIdleTTL, cfg.FormMaxActive, logger)
	registryCtx, stopRegistry := context.WithCancel(context.Background())
	defer stopRegistry()
	go registry.Run(registryCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		ContactHandler:     handler.NewContactHandler(registry, logger),
		ContactFormHandler: handler.NewContactFormHandler(registry, logger).WithKeepAlive(cfg.StreamKeepAlive),
		PageHandler:        handler.NewPageHandler(seo.NewCatalog(cfg.Site)),
		Relay:              contactService,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
