// The background worker for darna.
//
// It hosts the scheduled Temporal workflows: moderating freshly ingested
// listings and scanning saved searches for new matches.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/joho/godotenv"
	"github.com/oklog/run"
	"github.com/sethvargo/go-envconfig"
	"github.com/sethvargo/go-retry"
	"go.temporal.io/sdk/client"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/mbarkia/darna/internal/mongo"
	"github.com/mbarkia/darna/internal/worker"
	"github.com/mbarkia/darna/logger"
)

type config struct {
	DatabaseURL      string `env:"DATABASE_URL, required"`
	DatabaseName     string `env:"DATABASE_NAME, default=darna"`
	TemporalHostPort string `env:"TEMPORAL_HOST_PORT, required"`

	// Claude judging is optional: without a key the judge approves
	// whatever passes the profanity screen.
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
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

	l := slog.New(logger.NewContextHandler(slog.NewTextHandler(os.Stdout, nil)))
	slog.SetDefault(l)

	// Connect to mongo
	store, err := mongo.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseName)
	if err != nil {
		log.Fatalf("error connecting to mongo: %s", err)
	}
	defer store.Disconnect(context.WithoutCancel(ctx))

	// Retry until temporal is ready
	var temporalCli client.Client
	if err := retry.Fibonacci(ctx, 1*time.Second, func(ctx context.Context) error {
		c, err := client.Dial(client.Options{
			HostPort: cfg.TemporalHostPort,
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		temporalCli = c

		return nil
	}); err != nil {
		log.Fatalln("Unable to create Temporal client:", err)
	}
	defer temporalCli.Close()

	// A fresh dev server boots without its default namespace
	if err := worker.EnsureDefaultNamespace(ctx, temporalCli.WorkflowService()); err != nil {
		log.Fatalf("error ensuring namespace: %s", err)
	}

	var claudeClient *anthropic.Client
	if cfg.AnthropicAPIKey != "" {
		cc := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
		claudeClient = &cc
	}

	w, err := worker.NewWorker(ctx, store, temporalCli, claudeClient)
	if err != nil {
		log.Fatalf("error setting up worker: %s", err)
	}

	var g run.Group

	// The worker itself
	stopCh := make(chan interface{})
	g.Add(func() error {
		return w.Run(stopCh)
	}, func(error) {
		close(stopCh)
	})

	// Stop everything on interrupt
	g.Add(run.SignalHandler(ctx, os.Interrupt))

	if err := g.Run(); err != nil {
		var sigErr run.SignalError
		if errors.As(err, &sigErr) {
			slog.Info("shutting down", "signal", sigErr.Signal)
			return
		}

		slog.Error("error running", "error", err)
		os.Exit(1)
	}
}
