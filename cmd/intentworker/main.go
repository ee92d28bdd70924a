package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/acme/direct-calling/internal/app"
	"github.com/acme/direct-calling/internal/telemetry"
	intentworker "github.com/acme/direct-calling/internal/worker/intent"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := flag.String("config", getEnv("CONFIG_FILE", "configs/config.yaml"), "path to configuration file")
	flag.Parse()

	container, err := app.Build(ctx, *configPath)
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer container.Close()

	cfg := container.Config
	shutdown, err := telemetry.Setup(ctx, cfg.App, cfg.Telemetry, "intentworker")
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	if err := container.EnsureTopics(ctx); err != nil {
		log.Fatalf("failed to ensure kafka topics: %v", err)
	}

	worker := intentworker.New(intentworker.Deps{
		Reader:   container.Kafka.NewReader(cfg.Kafka.IntentTopic, cfg.Kafka.ConsumerGroupID),
		Provider: container.Providers().Telephony,
		Limiter:  container.Limiters().Launches,
		Store:    container.Repositories().Outcomes,
		Receipts: container.Publishers().Events,
		Timeout:  cfg.Telephony.RequestTimeout,
		Logger:   container.Logger,
	})
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("worker terminated: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
