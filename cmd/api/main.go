package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-triage/internal/api/http"
	"github.com/spec-kit/ticket-triage/internal/api/http/handlers"
	"github.com/spec-kit/ticket-triage/internal/auth"
	"github.com/spec-kit/ticket-triage/internal/cache"
	"github.com/spec-kit/ticket-triage/internal/config"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/jira"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/persistence"
	"github.com/spec-kit/ticket-triage/internal/repository"
	"github.com/spec-kit/ticket-triage/internal/repository/memory"
	"github.com/spec-kit/ticket-triage/internal/service"
	"github.com/spec-kit/ticket-triage/internal/worker"
	"github.com/spec-kit/ticket-triage/migrations"
)

type repositories struct {
	tickets  repository.TicketRepository
	comments repository.CommentRepository
	projects repository.ProjectRepository
	users    repository.UserRepository
	history  repository.TicketHistoryRepository
}

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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool(), migrations.FS, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	cacheClient := redis.Client()
	if err := redis.Ping(ctx); err != nil {
		logger.Warn("ticket cache disabled", zap.Error(err))
		cacheClient = nil
	}

	repos := buildRepositories(pg, logger)

	jiraClient, err := jira.NewClient(cfg.Jira, jira.WithLogger(logger))
	var fetcher service.IssueFetcher
	switch {
	case err == nil:
		fetcher = jiraClient
	case errors.Is(err, jira.ErrNotConfigured):
		logger.Warn("JIRA_* not set; unknown ticket keys will return 404")
	default:
		logger.Fatal("invalid jira config", zap.Error(err))
	}

	notifier := worker.NewNotificationWorker(cfg.Notification, logger, worker.SinksFor(cfg.Notification, logger)...)
	notifier.Start(ctx)
	defer notifier.Stop()

	dispatcher := events.NewInMemoryDispatcher()
	unregister := service.NewNotificationService(dispatcher, notifier, logger).RegisterHandlers()
	defer unregister()

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  repos.tickets,
		CommentRepo: repos.comments,
		ProjectRepo: repos.projects,
		HistoryRepo: repos.history,
		Cache:       cache.NewTicketCache(cacheClient, cfg.Cache.TicketTTL(), logger),
		Jira:        fetcher,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(cfg.Auth, repos.users, tokens)
	authMiddleware := auth.NewAuthMiddleware(tokens, repos.users)

	metrics := observability.NewMetrics()
	app := httptransport.NewApp(cfg.App.Name, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func buildRepositories(pg *persistence.Postgres, logger *zap.Logger) repositories {
	pool := pg.Pool()
	if pool == nil {
		logger.Warn("using in-memory repositories; data is lost on restart")
		store := memory.NewStore()
		return repositories{
			tickets:  store.Tickets(),
			comments: store.Comments(),
			projects: store.Projects(),
			users:    store.Users(),
			history:  store.History(),
		}
	}
	return repositories{
		tickets:  repository.NewTicketRepository(pool),
		comments: repository.NewCommentRepository(pool),
		projects: repository.NewProjectRepository(pool),
		users:    repository.NewUserRepository(pool),
		history:  repository.NewTicketHistoryRepository(pool),
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
