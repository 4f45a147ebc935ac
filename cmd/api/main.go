package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/deskflow/helpdesk-service/internal/api/http"
	"github.com/deskflow/helpdesk-service/internal/api/http/handlers"
	"github.com/deskflow/helpdesk-service/internal/auth"
	"github.com/deskflow/helpdesk-service/internal/config"
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/observability"
	"github.com/deskflow/helpdesk-service/internal/persistence"
	"github.com/deskflow/helpdesk-service/internal/repository"
	"github.com/deskflow/helpdesk-service/internal/service"
	"github.com/deskflow/helpdesk-service/internal/worker"
)

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

	if cfg.Postgres.RunMigrations && cfg.Postgres.DSN != "" {
		if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	departmentRepo := repository.NewDepartmentRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	commentRepo := repository.NewTicketCommentRepository(pool)
	ruleRepo := repository.NewAssignmentRuleRepository(pool)
	alertRepo := repository.NewAlertRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)

	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		RuleRepo:   ruleRepo,
		UserRepo:   userRepo,
		TicketRepo: ticketRepo,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     ticketRepo,
		UserRepo:       userRepo,
		DepartmentRepo: departmentRepo,
		HistoryRepo:    historyRepo,
		CommentRepo:    commentRepo,
		AlertRepo:      alertRepo,
		Assigner:       assignmentService,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Logger:         logger,
	})
	alertService := service.NewAlertService(service.AlertDependencies{
		TicketRepo: ticketRepo,
		AlertRepo:  alertRepo,
		UserRepo:   userRepo,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher:       dispatcher,
		NotificationRepo: notificationRepo,
		Logger:           logger,
		Config:           cfg.Notification,
	})
	directoryService := service.NewDirectoryService(service.DirectoryDependencies{
		DepartmentRepo: departmentRepo,
		UserRepo:       userRepo,
	})

	scheduler := worker.NewSLAScheduler(worker.SLASchedulerDependencies{
		Scanner: alertService,
		Locker:  redis,
		Metrics: metrics,
		Logger:  logger,
		Config:  cfg.Scheduler,
	})
	stopWorkers := worker.StartBackground(ctx, notificationService, scheduler)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, userRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:           handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, scheduler),
		Tickets:          handlers.NewTicketsHandler(ticketService),
		Rules:            handlers.NewAssignmentRulesHandler(assignmentService),
		Notifications:    handlers.NewNotificationsHandler(notificationService),
		SLA:              handlers.NewSLAHandler(alertService),
		Directory:        handlers.NewDirectoryHandler(directoryService),
		AuthMiddleware:   authMiddleware,
		Scheduler:        scheduler,
		SchedulerContext: ctx,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	stopWorkers()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
