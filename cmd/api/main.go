package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/acme/direct-calling/internal/api"
	"github.com/acme/direct-calling/internal/app"
	"github.com/acme/direct-calling/internal/bridge/ws"
	"github.com/acme/direct-calling/internal/telemetry"
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
	lg := container.Logger

	shutdown, err := telemetry.Setup(ctx, cfg.App, cfg.Telemetry, "api")
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	if err := container.EnsureTopics(ctx); err != nil {
		lg.Warn("kafka topics not ensured", zap.Error(err))
	}

	registry := container.Registry()
	server := api.NewServer(cfg.HTTP, container.HandlerSet())
	bridgeServer := ws.NewServer(cfg.Bridge, registry, lg)

	lg.Info("starting direct-calling api",
		zap.String("platform", container.Platform().Name()),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Int("bridge_port", cfg.Bridge.Port),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		return bridgeServer.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return bridgeServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		registry.Tickets().Run(gctx, time.Minute)
		return nil
	})

	if err := g.Wait(); err != nil {
		lg.Error("server terminated", zap.Error(err))
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
