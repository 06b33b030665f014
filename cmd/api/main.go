package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/fleetops/maintenance-service/internal/api/http"
	"github.com/fleetops/maintenance-service/internal/api/http/handlers"
	"github.com/fleetops/maintenance-service/internal/auth"
	"github.com/fleetops/maintenance-service/internal/config"
	"github.com/fleetops/maintenance-service/internal/escalation"
	"github.com/fleetops/maintenance-service/internal/events"
	"github.com/fleetops/maintenance-service/internal/export"
	"github.com/fleetops/maintenance-service/internal/notify"
	"github.com/fleetops/maintenance-service/internal/observability"
	"github.com/fleetops/maintenance-service/internal/persistence"
	"github.com/fleetops/maintenance-service/internal/repository"
	"github.com/fleetops/maintenance-service/internal/scheduler"
	"github.com/fleetops/maintenance-service/internal/service"
	"github.com/fleetops/maintenance-service/internal/worker"
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

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	installationRepo := repository.NewInstallationRepository(pool)
	responsibleRepo := repository.NewResponsibleRepository(pool)
	actionLogRepo := repository.NewActionLogRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	recipientRepo := repository.NewRecipientRepository(pool)

	loc := cfg.Notification.Location()
	renderer, err := notify.NewRenderer(cfg.App.PublicBaseURL, loc)
	if err != nil {
		logger.Fatal("failed to load email templates", zap.Error(err))
	}
	exporter, err := export.NewXLSXGenerator(cfg.Notification.ExportDir, renderer.TicketURL, loc)
	if err != nil {
		logger.Fatal("failed to prepare export dir", zap.Error(err))
	}
	mailer := newMailer(cfg.Notification, logger)

	resolver, err := departmentResolver(cfg.Escalation)
	if err != nil {
		logger.Fatal("invalid ESCALATION_DEPARTMENT_FRAGMENTS", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	concurrency := cfg.Notification.DispatchConcurrency

	criticalService := service.NewCriticalConditionService(service.CriticalDependencies{
		InstallationRepo: installationRepo,
		TicketRepo:       ticketRepo,
		RecipientRepo:    recipientRepo,
		Mailer:           mailer,
		Renderer:         renderer,
		Exporter:         exporter,
		Metrics:          metrics,
		Logger:           logger,
		Concurrency:      concurrency,
	})
	escalationService := service.NewEscalationService(service.EscalationDependencies{
		TicketRepo:    ticketRepo,
		RecipientRepo: recipientRepo,
		Mailer:        mailer,
		Renderer:      renderer,
		Exporter:      exporter,
		Resolver:      resolver,
		Locker:        redis,
		Store:         redis,
		Metrics:       metrics,
		Logger:        logger,
		Concurrency:   concurrency,
		BatchTimeout:  cfg.Escalation.BatchTimeout(),
		LockTTL:       cfg.Escalation.LockTTL(),
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: notificationRepo,
		TicketRepo:       ticketRepo,
		ResponsibleRepo:  responsibleRepo,
		RecipientRepo:    recipientRepo,
		Critical:         criticalService,
		Mailer:           mailer,
		Renderer:         renderer,
		Resolver:         resolver,
		Metrics:          metrics,
		Logger:           logger,
		Concurrency:      concurrency,
	})
	maintenanceService := service.NewMaintenanceService(service.MaintenanceDependencies{
		TicketRepo:       ticketRepo,
		InstallationRepo: installationRepo,
		ResponsibleRepo:  responsibleRepo,
		ActionLogRepo:    actionLogRepo,
		HistoryRepo:      historyRepo,
		Dispatcher:       dispatcher,
	})
	authService := service.NewAuthService(cfg.Auth, userRepo)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	notificationWorker := worker.NewNotificationWorker(notificationService.Handle, concurrency, 256, logger)
	notificationWorker.Subscribe(dispatcher, notificationService.EventTypes()...)
	notificationWorker.Start()

	var deadlineScheduler *scheduler.DeadlineScheduler
	if cfg.Scheduler.Enabled {
		deadlineScheduler = scheduler.NewDeadlineScheduler(cfg.Scheduler, escalationService, logger)
		if err := deadlineScheduler.Start(); err != nil {
			logger.Fatal("failed to start scheduler", zap.Error(err))
		}
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:           handlers.NewAuthHandler(authService),
		Maintenance:    handlers.NewMaintenanceHandler(maintenanceService, renderer.TicketURL),
		Notifications:  handlers.NewNotificationHandler(notificationService),
		Escalation:     handlers.NewEscalationHandler(escalationService, criticalService),
		Reference:      handlers.NewReferenceHandler(installationRepo, responsibleRepo),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if deadlineScheduler != nil {
		<-deadlineScheduler.Stop().Done()
	}
	notificationWorker.Stop()
}

func newMailer(cfg config.NotificationConfig, logger *zap.Logger) notify.Mailer {
	if cfg.ResendAPIKey == "" {
		logger.Warn("RESEND_API_KEY not set, emails will only be logged")
		return notify.NewLogMailer(logger)
	}
	mailer, err := notify.NewResendMailer(cfg.ResendAPIKey, cfg.EmailFrom, cfg.ArchiveAddress)
	if err != nil {
		logger.Fatal("failed to init resend mailer", zap.Error(err))
	}
	return mailer
}

func departmentResolver(cfg config.EscalationConfig) (escalation.DepartmentResolver, error) {
	fragments := cfg.Fragments()
	if fragments == nil {
		return escalation.NewFragmentResolver(escalation.DefaultDepartmentFragments()), nil
	}
	mapping, err := escalation.ParseDepartmentFragments(fragments)
	if err != nil {
		return nil, err
	}
	return escalation.NewFragmentResolver(mapping), nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
