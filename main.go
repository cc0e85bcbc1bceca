package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LexiconIndonesia/crawler-admin-service/common"
	"github.com/LexiconIndonesia/crawler-admin-service/common/config"
	"github.com/LexiconIndonesia/crawler-admin-service/common/crawlerapi"
	"github.com/LexiconIndonesia/crawler-admin-service/common/db"
	"github.com/LexiconIndonesia/crawler-admin-service/common/inflight"
	"github.com/LexiconIndonesia/crawler-admin-service/common/logger"
	"github.com/LexiconIndonesia/crawler-admin-service/common/messaging"
	"github.com/LexiconIndonesia/crawler-admin-service/common/notify"
	"github.com/LexiconIndonesia/crawler-admin-service/common/redis"
	"github.com/LexiconIndonesia/crawler-admin-service/crawljob"
	"github.com/LexiconIndonesia/crawler-admin-service/proxypool"

	"github.com/rs/zerolog/log"

	"github.com/joho/godotenv"

	_ "github.com/LexiconIndonesia/crawler-admin-service/docs"
)

// @title          Crawler Admin Service API
// @version        1.0
// @description    Operator console for the manga crawler: crawl jobs, job history and the proxy pool.

// @host     localhost:8080
// @BasePath /
// @schemes  http https

// @securityDefinitions.apikey ApiKeyAuth
// @in                         header
// @name                       X-API-KEY

func main() {
	// INITIATE CONFIGURATION
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("Error loading .env file, using environment variables")
	}

	cfg := config.DefaultConfig()
	cfg.LoadFromEnv()
	logger.InitializeLogging(cfg)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Create a base context with cancel for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server, err := NewAppHttpServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create the server")
	}

	// INITIATE REDIS
	var rc *redis.RedisClient
	if cfg.Redis.Enabled {
		rc, err = redis.NewClient(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to setup Redis")
		}
		defer rc.Close()
		server.AddHealthCheck("redis", rc.Ping)
	}

	// INITIATE DATABASE
	var store *db.NotificationStore
	if cfg.PgSql.Enabled {
		dbConn, err := db.SetupDatabase(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to setup database")
		}
		defer dbConn.Close()
		store = db.NewNotificationStore(dbConn.Pool)
		server.AddHealthCheck("postgres", dbConn.Ping)
	}

	// INITIATE NATS CLIENT
	var broker *messaging.NatsBroker
	if cfg.Nats.Enabled {
		broker, err = messaging.SetupNatsBroker(ctx, cfg, common.NotificationStream, common.NotificationSubjectPrefix+".>")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to setup NATS client")
		}
		defer broker.Close()
		server.AddHealthCheck("nats", func(context.Context) error {
			if !broker.IsConnected() {
				return fmt.Errorf("not connected")
			}
			return nil
		})
	}

	// NOTIFICATIONS
	sinks := []notify.Sink{notify.DefaultLogSink()}
	if broker != nil {
		sinks = append(sinks, notify.NewNatsSink(broker, common.NotificationSubjectPrefix))
	}
	if store != nil {
		sinks = append(sinks, notify.NewStoreSink(store))
	}
	hub, err := notify.NewHub(notify.HubConfig{
		Recent:  cfg.Notification.Recent,
		Workers: cfg.Notification.Workers,
	}, sinks...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to setup notifications")
	}

	// CRAWLER API
	client := crawlerapi.NewFromConfig(cfg, crawlerapi.WithUnauthorizedHook(func() {
		log.Error().Msg("Crawler API rejected the console token")
		hub.Publish(notify.Error("auth", "Crawler API rejected the console token", "check API_TOKEN"))
	}))

	var drivers crawljob.DriverLister = client
	if rc != nil {
		drivers = crawlerapi.NewDriverCache(client, rc, cfg.Redis.DriverCacheTTL)
	}

	listingOpts := []crawljob.ListingOption{
		crawljob.WithListInterval(cfg.Polling.ListInterval),
		crawljob.WithListDrivers(drivers),
		crawljob.WithPageSize(cfg.Polling.DefaultPageSize),
	}
	proxyOpts := []proxypool.Option{
		proxypool.WithPageSize(cfg.Polling.DefaultPageSize),
	}
	if rc != nil && cfg.Redis.SharedInflight {
		claimer := inflight.NewRedisClaimer(rc, common.DefaultInflightTTL)
		listingOpts = append(listingOpts, crawljob.WithActionClaimer(claimer))
		proxyOpts = append(proxyOpts, proxypool.WithTestClaimer(claimer))
		log.Info().Msg("In-flight markers shared through Redis")
	}

	controller := crawljob.NewController(client, hub,
		crawljob.WithPollInterval(cfg.Polling.JobInterval),
		crawljob.WithDrivers(drivers),
	)
	listing := crawljob.NewListing(client, hub, listingOpts...)
	proxies := proxypool.NewManager(client, hub, proxyOpts...)

	// Inject dependencies
	server.SetComponents(controller, listing, proxies)
	if store != nil {
		server.SetNotifications(hub, store)
	} else {
		server.SetNotifications(hub, nil)
	}

	// Setup routes
	server.setupRoute()

	// Start server in a goroutine
	go func() {
		if err := server.start(); err != nil {
			log.Error().Err(err).Msg("Server error")
			cancel()
		}
	}()

	log.Info().Str("address", cfg.Listen.Addr()).Str("upstream", cfg.Api.BaseURL).Msg("Server started successfully")
	log.Info().Str("swagger", fmt.Sprintf("http://%s/swagger/index.html", cfg.Listen.Addr())).Msg("Swagger documentation available at")

	// Wait for shutdown signal
	select {
	case <-shutdown:
		log.Info().Msg("Shutdown signal received")
	case <-ctx.Done():
	}

	// Create a timeout context for graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	controller.Close()
	listing.Close()
	hub.Close()

	log.Info().Msg("Server gracefully stopped")
}
