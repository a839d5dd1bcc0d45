package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/api"
	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/authz"
	"github.com/parleyhq/parley/internal/cache"
	"github.com/parleyhq/parley/internal/db"
	"github.com/parleyhq/parley/internal/eventbus"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/observability"
	"github.com/parleyhq/parley/internal/quota"
	"github.com/parleyhq/parley/internal/ratelimit"
	"github.com/parleyhq/parley/internal/service"
	"github.com/parleyhq/parley/internal/store"
)

func serveCmd() *cobra.Command {
	var (
		listenAddr string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and event relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Server.ListenAddr = listenAddr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Logging.Level = logLevel
			}

			logging.InitStructured(cfg.Logging.Format, cfg.Logging.Level)

			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := context.Background()

			if err := observability.Init(ctx, observability.Config{
				Enabled:     cfg.Observability.Enabled,
				Exporter:    cfg.Observability.Exporter,
				Endpoint:    cfg.Observability.Endpoint,
				ServiceName: cfg.Observability.ServiceName,
				SampleRate:  cfg.Observability.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.Shutdown(context.Background())

			metrics.InitPrometheus("parley", nil)

			if cfg.Database.AutoMigrate {
				if err := db.Migrate(cfg.Database.URL, "up"); err != nil {
					return fmt.Errorf("auto migrate: %w", err)
				}
				logging.Op().Info("schema migrations applied")
			}

			pgStore, err := store.NewPostgresStore(ctx, cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pgStore.Close()

			// Session cache. With Redis the L1/L2 pair keeps validation
			// local while revocations propagate over Pub/Sub; without it a
			// process-local cache still absorbs the hot path.
			var (
				sessionCache cache.Cache
				redisClient  *redis.Client
				invalidator  *cache.CacheInvalidator
			)
			if cfg.Redis.Enabled {
				redisClient = redis.NewClient(&redis.Options{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})
				defer redisClient.Close()

				l1 := cache.NewInMemoryCache()
				l2 := cache.NewRedisCache(redisClient, "")
				sessionCache = cache.NewTieredCache(l1, l2, cache.DefaultL1TTL)

				invalidator = cache.NewCacheInvalidator(l1, redisClient)
				go invalidator.Start(ctx)
				defer invalidator.Close()

				logging.Op().Info("redis cache enabled", "addr", cfg.Redis.Addr)
			} else {
				sessionCache = cache.NewInMemoryCache()
			}

			quotas := quota.NewEnforcer(pgStore, cfg.Quota)
			conversations := service.NewConversationService(pgStore)
			assignments := service.NewAssignmentService(pgStore)
			directory := service.NewDirectoryService(pgStore, quotas)

			// Event publishing. The outbox relay drains rows written by the
			// store inside assignment transactions, so the broker being down
			// never blocks a pickup.
			var publisher eventbus.Publisher
			if cfg.AMQP.Enabled {
				amqpPub, err := eventbus.NewAMQPPublisher(ctx, eventbus.AMQPConfig{
					URL:      cfg.AMQP.URL,
					Exchange: cfg.AMQP.Exchange,
				})
				if err != nil {
					return fmt.Errorf("connect amqp: %w", err)
				}
				// The breaker keeps relay workers from stacking publish
				// timeouts while the broker is down; rejected rows retry
				// through the outbox schedule.
				publisher = eventbus.NewBreakerPublisher(amqpPub, eventbus.DefaultBreakerConfig())
				logging.Op().Info("amqp publisher connected", "exchange", cfg.AMQP.Exchange)
			} else {
				publisher = eventbus.LogPublisher{}
				logging.Op().Info("amqp disabled, events go to the operational log")
			}
			defer publisher.Close()

			relay := eventbus.NewOutboxRelay(pgStore, publisher, eventbus.OutboxRelayConfig{
				Workers:       cfg.Outbox.Workers,
				PollInterval:  time.Duration(cfg.Outbox.PollIntervalMS) * time.Millisecond,
				LeaseDuration: time.Duration(cfg.Outbox.LeaseSeconds) * time.Second,
				MaxAttempts:   cfg.Outbox.MaxAttempts,
				BackoffBaseMS: cfg.Outbox.BaseBackoffMS,
				BackoffMaxMS:  cfg.Outbox.MaxBackoffMS,
			})
			relay.Start()
			defer relay.Stop()

			sessionTTL := time.Duration(cfg.Auth.SessionCacheTTLSeconds) * time.Second
			authenticator := auth.NewSessionAuthenticator(pgStore, sessionCache, sessionTTL)
			authorizer := authz.New(pgStore)

			var limitBackend ratelimit.Backend
			if cfg.RateLimit.Enabled {
				if redisClient != nil {
					limitBackend = ratelimit.NewFallbackBackend(ratelimit.NewRedisBackend(redisClient))
				} else {
					limitBackend = ratelimit.NewLocalTokenBucketBackend()
				}
			}

			server := api.StartHTTPServer(cfg.Server.ListenAddr, api.ServerConfig{
				Conversations:    conversations,
				Assignments:      assignments,
				Availability:     directory,
				Directory:        directory,
				Audit:            assignments,
				Authenticators:   []auth.Authenticator{authenticator},
				Authorizer:       authorizer,
				RateLimitBackend: limitBackend,
				RateLimitCfg:     cfg.RateLimit,
				DB:               pgStore,
				Cache:            sessionCache,
			})
			logging.Op().Info("parleyd listening", "addr", cfg.Server.ListenAddr)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			logging.Op().Info("shutdown signal received")

			shutdownCtx, cancel := context.WithTimeout(context.Background(),
				time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logging.Op().Warn("http shutdown incomplete", "error", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")

	return cmd
}
