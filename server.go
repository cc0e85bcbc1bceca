package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/LexiconIndonesia/crawler-admin-service/common/config"
	"github.com/LexiconIndonesia/crawler-admin-service/crawljob"
	"github.com/LexiconIndonesia/crawler-admin-service/handler"
	"github.com/LexiconIndonesia/crawler-admin-service/middlewares"
	"github.com/LexiconIndonesia/crawler-admin-service/proxypool"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type AppHttpServer struct {
	router *chi.Mux
	cfg    config.Config
	server *http.Server

	controller *crawljob.Controller
	listing    *crawljob.Listing
	proxies    *proxypool.Manager
	recent     handler.RecentNotifications
	history    handler.NotificationHistory
	checks     map[string]handler.HealthCheck
}

func NewAppHttpServer(cfg config.Config) (*AppHttpServer, error) {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Security.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-API-KEY"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Bulk proxy tests can take a while upstream.
	r.Use(middleware.Timeout(2 * time.Minute))

	server := &AppHttpServer{
		router: r,
		cfg:    cfg,
		checks: map[string]handler.HealthCheck{},
	}
	return server, nil
}

// SetComponents sets the console components served under /v1.
func (s *AppHttpServer) SetComponents(controller *crawljob.Controller, listing *crawljob.Listing, proxies *proxypool.Manager) {
	s.controller = controller
	s.listing = listing
	s.proxies = proxies
}

// SetNotifications sets the notification sources. history may be nil.
func (s *AppHttpServer) SetNotifications(recent handler.RecentNotifications, history handler.NotificationHistory) {
	s.recent = recent
	s.history = history
}

// AddHealthCheck registers a dependency probe for /v1/health.
func (s *AppHttpServer) AddHealthCheck(name string, check handler.HealthCheck) {
	s.checks[name] = check
}

func (s *AppHttpServer) setupRoute() {
	r := s.router

	if s.history == nil {
		log.Warn().Msg("Notification history not set, only the in-memory ring is served")
	}

	// API Documentation with Swagger
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"), // The URL pointing to API definition
	))

	healthHandler := handler.NewHealthHandler(s.checks)

	// Public health endpoint (no authentication required)
	r.Get("/health", healthHandler.HandleLiveness)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middlewares.ApiKey(s.cfg.Security.BackendApiKey))

		// Handlers
		crawlHandler := handler.NewCrawlHandler(s.controller)
		jobsHandler := handler.NewJobsHandler(s.listing)
		proxyHandler := handler.NewProxyHandler(s.proxies)
		notificationHandler := handler.NewNotificationHandler(s.recent, s.history)

		r.Mount("/crawl", crawlHandler.Router())
		r.Mount("/jobs", jobsHandler.Router())
		r.Mount("/proxies", proxyHandler.Router())
		r.Mount("/notifications", notificationHandler.Router())
		r.Mount("/health", healthHandler.Router())
	})
}

func (s *AppHttpServer) start() error {
	r := s.router
	cfg := s.cfg
	log.Info().Msg("Starting up server...")

	// WriteTimeout must outlast the request timeout middleware.
	s.server = &http.Server{
		Addr:         cfg.Listen.Addr(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// This starts the server in a goroutine from main
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// stop gracefully shuts down the server
func (s *AppHttpServer) stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
