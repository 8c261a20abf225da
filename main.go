// Darna aggregates real-estate listings scraped from Tunisian marketplaces.
//
// This binary serves the HTTP API: listing ingestion, search and filtering,
// moderation, saved searches, and alerts. The scheduled automation runs in
// the separate cmd/worker binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	_ "golang.org/x/crypto/x509roots/fallback"
	"golang.org/x/sync/errgroup"

	"github.com/mbarkia/darna/internal/api"
	"github.com/mbarkia/darna/internal/darna"
	"github.com/mbarkia/darna/internal/ingest"
	"github.com/mbarkia/darna/internal/migrations"
	"github.com/mbarkia/darna/internal/mongo"
	"github.com/mbarkia/darna/logger"
)

type config struct {
	Port         int    `env:"PORT, default=8000"`
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabaseName string `env:"DATABASE_NAME, default=darna"`
	CORSOrigin   string `env:"CORS_ORIGIN, default=*"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Env vars can also come from a local .env file
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system env vars")
	}

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	// Determine which logger format to use
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, nil)
	if cfg.LoggerFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	}
	l := slog.New(logger.NewContextHandler(handler))
	slog.SetDefault(l)

	// Start the application
	if err := run(ctx, cfg); err != nil {
		slog.Error("error running", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config) error {
	slog.Info("running", "port", cfg.Port, "database_name", cfg.DatabaseName)

	// Connect to mongo. Without DATABASE_URL the API still comes up, but
	// anything touching the store answers 503 until one is configured.
	var (
		store  darna.Store         = mongo.Unavailable{}
		health darna.HealthChecker = mongo.Unavailable{}
	)
	if cfg.DatabaseURL != "" {
		ms, err := mongo.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseName)
		if err != nil {
			return fmt.Errorf("error connecting to mongo: %s", err)
		}
		defer ms.Disconnect(context.WithoutCancel(ctx))

		// Migrate, always
		if err := migrations.Run(ms.Client(), cfg.DatabaseName); err != nil {
			return fmt.Errorf("error migrating: %s", err)
		}

		store, health = ms, ms
	}

	engine := ingest.NewEngine(store)
	s := api.NewServer(api.ServerConfig{
		Port:       cfg.Port,
		CorsHeader: cfg.CORSOrigin,
	}, store, engine, health)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Start the server
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error listening: %s", err)
		}

		return nil
	})
	g.Go(func() error {
		// Block from shutting down until the group is canceled
		<-gCtx.Done()

		downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(downCtx); err != nil {
			slog.Error("error shutting down server", "error", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("error running: %s", err)
	}

	return nil
}
