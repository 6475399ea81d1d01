package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/signal-site/relay/internal/campaign"
	"github.com/signal-site/relay/internal/config"
	"github.com/signal-site/relay/internal/dedup"
	"github.com/signal-site/relay/internal/dlq"
	"github.com/signal-site/relay/internal/fulfillment"
	"github.com/signal-site/relay/internal/handlers"
	"github.com/signal-site/relay/internal/logging"
	"github.com/signal-site/relay/internal/relay"
	"github.com/signal-site/relay/internal/server"

	natsclient "github.com/signal-site/relay/internal/messaging/nats"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("relay"))
	logging.SetDefault(logger)

	slog.Info("Starting relay service",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("log_format", cfg.Logging.Format),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}
	slog.Info("Relay targets configured",
		slog.String("listmonk_url", cfg.Listmonk.URL),
		slog.String("site_url", cfg.Ghost.SiteURL),
		slog.String("bucket", cfg.Fulfillment.Bucket),
	)

	// Initialize dedup cache
	var deduper dedup.Deduper
	if cfg.Redis.Enabled {
		d, err := dedup.NewRedisDeduper(cfg.Redis.URL, cfg.Redis.DedupTTL)
		if err != nil {
			log.Printf("WARNING: Failed to initialize Redis dedup cache: %v", err)
			log.Println("Continuing without duplicate-delivery suppression")
			deduper = dedup.NoOpDeduper{}
		} else {
			deduper = d
			log.Printf("Duplicate-delivery suppression enabled (ttl: %s)", cfg.Redis.DedupTTL)
		}
	} else {
		deduper = dedup.NoOpDeduper{}
		log.Println("Redis disabled - duplicate deliveries will not be suppressed")
	}
	defer deduper.Close()

	// Initialize dead letter queue
	var dlqWriter dlq.Writer
	if cfg.DLQ.Enabled {
		switch cfg.DLQ.Backend {
		case "jetstream", "":
			jsClient, err := natsclient.NewJetStreamClient(natsclient.Config{
				URL: cfg.DLQ.NatsURL,
			})
			if err != nil {
				log.Fatalf("Failed to connect to NATS for DLQ: %v", err)
			}
			defer jsClient.Close()
			jsDLQ, err := dlq.NewJetStreamQueue(context.Background(), jsClient)
			if err != nil {
				log.Fatalf("Failed to initialize JetStream DLQ: %v", err)
			}
			dlqWriter = jsDLQ
			log.Printf("Dead letter queue enabled (backend: jetstream, nats: %s)", cfg.DLQ.NatsURL)
		case "file":
			fileDLQ, err := dlq.NewFileQueue(cfg.DLQ.BasePath)
			if err != nil {
				log.Fatalf("Failed to initialize file DLQ: %v", err)
			}
			dlqWriter = fileDLQ
			log.Printf("Dead letter queue enabled (backend: file, path: %s)", cfg.DLQ.BasePath)
			log.Println("WARNING: File-based DLQ does not support multiple relay instances")
		default:
			log.Fatalf("Unknown DLQ backend: %s (supported: jetstream, file)", cfg.DLQ.Backend)
		}
	} else {
		dlqWriter = dlq.NoOpWriter{}
		log.Println("Dead letter queue disabled - unfulfillable purchases will only be logged")
	}

	// Initialize relay clients
	listmonk := relay.NewListmonk(cfg.Listmonk.URL, cfg.Listmonk.Username, cfg.Listmonk.Token, cfg.Listmonk.Timeout)
	prices := relay.NewStripePrices(cfg.Stripe.APIKey)

	// Initialize fulfillment pipeline
	presigner, err := fulfillment.NewS3Presigner(cfg.Fulfillment.Region, cfg.Fulfillment.Bucket)
	if err != nil {
		log.Fatalf("Failed to initialize S3 presigner: %v", err)
	}
	mailer, err := fulfillment.NewMailer(cfg.Fulfillment.EmailURI)
	if err != nil {
		log.Fatalf("Failed to initialize mailer: %v", err)
	}
	fulfiller := fulfillment.NewService(prices, presigner, mailer,
		cfg.Fulfillment.Products, cfg.Fulfillment.FromAddress, cfg.Fulfillment.URLTTL)

	// Initialize campaign composition
	composer, err := campaign.NewComposer(cfg.Ghost.TemplatePath)
	if err != nil {
		log.Fatalf("Failed to load campaign template: %v", err)
	}

	// Initialize HTTP handlers
	ghostHandler := handlers.NewGhostHandler(handlers.GhostConfig{
		WebhookSecret:    cfg.Ghost.WebhookSecret,
		SiteURL:          cfg.Ghost.SiteURL,
		ListID:           cfg.Ghost.ListID,
		SendDelayMinutes: cfg.Ghost.SendDelayMinutes,
	}, listmonk, composer, deduper, logger)

	stripeHandler := handlers.NewStripeHandler(handlers.StripeConfig{
		WebhookSecret: cfg.Stripe.WebhookSecret,
	}, fulfiller, deduper, dlqWriter, logger)

	router := server.NewRouter(ghostHandler, stripeHandler)

	// Create server with config values
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Relay service listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
