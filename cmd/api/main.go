package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/issue-engine/internal/api/http"
	"github.com/spec-kit/issue-engine/internal/api/http/handlers"
	"github.com/spec-kit/issue-engine/internal/auth"
	"github.com/spec-kit/issue-engine/internal/clock"
	"github.com/spec-kit/issue-engine/internal/config"
	"github.com/spec-kit/issue-engine/internal/events"
	"github.com/spec-kit/issue-engine/internal/lock"
	"github.com/spec-kit/issue-engine/internal/observability"
	"github.com/spec-kit/issue-engine/internal/persistence"
	"github.com/spec-kit/issue-engine/internal/push"
	"github.com/spec-kit/issue-engine/internal/ratelimit"
	"github.com/spec-kit/issue-engine/internal/service"
	"github.com/spec-kit/issue-engine/internal/worker"
)

const rateLimitWindow = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := persistence.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer store.Close()

	clk := clock.Real()
	metrics := observability.NewMetrics()

	var (
		locker  lock.IssueLocker  = lock.NewLocal()
		broker  push.Broker       = push.NewHub(cfg.Push.SubscriberBufferMessages)
		limiter ratelimit.Limiter = ratelimit.NewLocalLimiter(clk, cfg.Engine.RateLimitPerDay, rateLimitWindow)
		checks                    = map[string]handlers.Check{"store": store.Ping}
	)
	if redisClient := persistence.OpenRedis(ctx, cfg.Redis, logger); redisClient != nil {
		defer redisClient.Close()
		locker = lock.NewRedis(redisClient, cfg.Engine.LockTTL(), logger)
		broker = push.NewRedisBroker(redisClient, cfg.Push.SubscriberBufferMessages, logger)
		limiter = ratelimit.NewRedisLimiter(redisClient, "ratelimit:issues", cfg.Engine.RateLimitPerDay, rateLimitWindow)
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	dispatcher := events.NewInMemoryDispatcher()
	relay := worker.NewOutboxRelay(store, dispatcher, clk, logger, metrics, worker.RelayOptions{
		PollInterval:    cfg.Outbox.PollInterval(),
		BatchSize:       cfg.Outbox.BatchSize,
		BaseBackoff:     cfg.Outbox.BaseBackoff(),
		MaxBackoff:      cfg.Outbox.MaxBackoff(),
		MaxPushAttempts: cfg.Push.MaxAttempts,
	})

	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Store:     store,
		Publisher: broker,
		Clock:     clk,
		Logger:    logger,
		Metrics:   metrics,
	})
	issueService := service.NewIssueService(service.IssueDependencies{
		Store:            store,
		Clock:            clk,
		Locker:           locker,
		Nudger:           relay,
		Limiter:          limiter,
		Logger:           logger,
		Metrics:          metrics,
		OperationTimeout: cfg.Engine.OperationTimeout(),
		ListBatchSize:    cfg.Engine.ListBatchSize,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		Store:            store,
		Clock:            clk,
		Locker:           locker,
		Nudger:           relay,
		Logger:           logger,
		Metrics:          metrics,
		OperationTimeout: cfg.Engine.OperationTimeout(),
	})
	userService := service.NewUserService(store, clk, logger)

	relayDone := worker.StartNotificationWorker(ctx, notificationService, dispatcher, relay)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTL(), clk)

	app := httptransport.NewApp(cfg.App.Name, cfg.App.RequestTimeout())
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks),
		Issues:         handlers.NewIssuesHandler(issueService),
		Assignments:    handlers.NewAssignmentsHandler(assignmentService),
		Notifications:  handlers.NewNotificationsHandler(notificationService, broker, cfg.Push.StreamHeartbeat(), logger),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Metrics:        metrics,
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()), zap.String("store", cfg.Store.Driver))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	<-relayDone
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
