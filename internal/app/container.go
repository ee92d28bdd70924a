package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/acme/direct-calling/internal/api/handlers"
	"github.com/acme/direct-calling/internal/config"
	"github.com/acme/direct-calling/internal/dialer"
	"github.com/acme/direct-calling/internal/infra/db"
	"github.com/acme/direct-calling/internal/infra/redis"
	intentplatform "github.com/acme/direct-calling/internal/platform/intent"
	"github.com/acme/direct-calling/internal/platform/urlscheme"
	"github.com/acme/direct-calling/internal/queue"
	"github.com/acme/direct-calling/internal/repository"
	pgrepo "github.com/acme/direct-calling/internal/repository/postgres"
	scyllarepo "github.com/acme/direct-calling/internal/repository/scylla"
	"github.com/acme/direct-calling/internal/service/concurrency"
	grantsvc "github.com/acme/direct-calling/internal/service/grant"
	outcomesvc "github.com/acme/direct-calling/internal/service/outcome"
	"github.com/acme/direct-calling/internal/session"
	"github.com/acme/direct-calling/internal/telephony"
	telephonyMock "github.com/acme/direct-calling/internal/telephony/mock"
	"github.com/acme/direct-calling/pkg/logger"
)

// Container wires together shared infrastructure dependencies.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Postgres *db.Postgres
	Scylla   *db.Scylla
	Redis    *redis.Client
	Kafka    *queue.Kafka

	// lazily initialised components
	components struct {
		once         sync.Once
		repositories *repositories
		services     *services
		publishers   *publishers
		providers    *providers
		limiters     *limiters
		platform     dialer.Platform
		registry     *session.Registry
	}
}

type repositories struct {
	Grants   repository.GrantRepository
	Outcomes repository.OutcomeStore
}

type services struct {
	Grants   *grantsvc.Service
	Outcomes *outcomesvc.Service
}

type publishers struct {
	Intents *queue.IntentPublisher
	Events  *queue.EventPublisher
}

type providers struct {
	Telephony telephony.Provider
}

type limiters struct {
	Launches *concurrency.Limiter
}

// Build constructs a container for the given configuration path.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	pg, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("bootstrap postgres: %w", err)
	}

	scylla, err := db.NewScylla(cfg.Scylla)
	if err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("bootstrap scylla: %w", err)
	}

	redisClient, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		scylla.Close()
		_ = pg.Close()
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}

	kafka, err := queue.NewKafka(cfg.Kafka)
	if err != nil {
		_ = redisClient.Close()
		scylla.Close()
		_ = pg.Close()
		return nil, fmt.Errorf("bootstrap kafka: %w", err)
	}

	return &Container{
		Config:   cfg,
		Logger:   lg,
		Postgres: pg,
		Scylla:   scylla,
		Redis:    redisClient,
		Kafka:    kafka,
	}, nil
}

func (c *Container) initComponents() {
	c.components.once.Do(func() {
		cfg := c.Config

		repos := &repositories{
			Grants:   pgrepo.NewGrantRepository(c.Postgres.DB()),
			Outcomes: scyllarepo.NewOutcomeStore(c.Scylla.Session()),
		}

		pubs := &publishers{
			Intents: queue.NewIntentPublisher(c.Kafka, cfg.Kafka.IntentTopic),
			Events:  queue.NewEventPublisher(c.Kafka, cfg.Kafka.OutcomeTopic, cfg.Kafka.ReceiptTopic),
		}

		svcs := &services{
			Grants:   grantsvc.NewService(repos.Grants, grantsvc.NewRedisCache(c.Redis.Inner()), cfg.Redis.GrantTTL, c.Logger.Named("grants")),
			Outcomes: outcomesvc.NewService(repos.Outcomes, pubs.Events, c.Logger.Named("outcomes")),
		}

		provs := &providers{
			Telephony: telephonyMock.NewProvider(cfg.Telephony),
		}

		lims := &limiters{
			Launches: concurrency.NewLimiter(c.Redis.Inner(), cfg.Throttle.PerDeviceLaunches, cfg.Throttle.SlotTTL),
		}

		var platform dialer.Platform
		switch cfg.Platform.Kind {
		case config.PlatformURLScheme:
			platform = urlscheme.New(telephony.NewOpener(provs.Telephony, cfg.Telephony.RequestTimeout))
		default:
			platform = intentplatform.New(svcs.Grants, pubs.Intents, cfg.Platform, c.Logger.Named("platform"))
		}

		c.components.repositories = repos
		c.components.publishers = pubs
		c.components.services = svcs
		c.components.providers = provs
		c.components.limiters = lims
		c.components.platform = platform
		c.components.registry = session.NewRegistry(
			platform,
			svcs.Grants,
			svcs.Outcomes.Observe,
			session.NewTicketBook(cfg.Bridge.TicketTTL),
			c.Logger.Named("session"),
		)
	})
}

// Repositories exposes initialized repositories.
func (c *Container) Repositories() *repositories {
	c.initComponents()
	return c.components.repositories
}

// Services exposes initialized services.
func (c *Container) Services() *services {
	c.initComponents()
	return c.components.services
}

// Publishers exposes Kafka publishers.
func (c *Container) Publishers() *publishers {
	c.initComponents()
	return c.components.publishers
}

// Providers exposes external providers.
func (c *Container) Providers() *providers {
	c.initComponents()
	return c.components.providers
}

// Limiters exposes limiter utilities.
func (c *Container) Limiters() *limiters {
	c.initComponents()
	return c.components.limiters
}

// Platform returns the capability variant selected by platform.kind.
func (c *Container) Platform() dialer.Platform {
	c.initComponents()
	return c.components.platform
}

// Registry returns the device session registry.
func (c *Container) Registry() *session.Registry {
	c.initComponents()
	return c.components.registry
}

// HandlerSet builds HTTP handlers with dependencies.
func (c *Container) HandlerSet() *handlers.HandlerSet {
	c.initComponents()
	return handlers.NewHandlerSet(handlers.Deps{
		Registry:   c.components.registry,
		Outcomes:   c.components.services.Outcomes,
		InvokeWait: c.Config.HTTP.InvokeWait,
		Logger:     c.Logger.Named("http"),
		Health: map[string]handlers.Pinger{
			"postgres": c.Postgres,
			"redis":    c.Redis,
			"scylla":   c.Scylla,
		},
	})
}

// Close releases all held resources.
func (c *Container) Close() error {
	var errs []error
	if p := c.components.publishers; p != nil {
		if err := p.Intents.Close(); err != nil {
			errs = append(errs, fmt.Errorf("intent publisher close: %w", err))
		}
		if err := p.Events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event publisher close: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Scylla != nil {
		c.Scylla.Close()
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	return errors.Join(errs...)
}

// EnsureTopics ensures required Kafka topics exist.
func (c *Container) EnsureTopics(ctx context.Context) error {
	return c.Kafka.EnsureTopics(ctx, 1)
}
