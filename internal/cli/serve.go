package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/marketplace-service/internal/api/http"
	"github.com/spec-kit/marketplace-service/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-service/internal/auth"
	"github.com/spec-kit/marketplace-service/internal/events"
	"github.com/spec-kit/marketplace-service/internal/observability"
	"github.com/spec-kit/marketplace-service/internal/persistence"
	"github.com/spec-kit/marketplace-service/internal/realtime"
	"github.com/spec-kit/marketplace-service/internal/repository"
	"github.com/spec-kit/marketplace-service/internal/service"
	"github.com/spec-kit/marketplace-service/internal/storage"
	"github.com/spec-kit/marketplace-service/internal/worker"
	"github.com/spec-kit/marketplace-service/migrations"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the realtime socket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	logger, pg, err := openPostgres(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), migrations.FS, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	productRepo := repository.NewProductRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	socialRepo := repository.NewSocialRepository(pool)
	auditRepo := repository.NewAuditLogRepository(pool)

	dispatcher := events.NewInMemoryDispatcher(logger)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{UserRepo: userRepo})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo, cfg.Auth.CookieName)

	hub := realtime.NewHub(realtime.HubDependencies{
		Auth:    authMiddleware,
		Redis:   redis,
		Metrics: metrics,
		Logger:  logger,
		Origins: cfg.App.Origins(),
	})

	notificationService := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: notificationRepo,
		Dispatcher:       dispatcher,
		Emitter:          hub,
		Webhook:          service.NewWebhookNotifier(cfg.Notification, logger),
		Logger:           logger,
	})
	messageService := service.NewMessageService(service.MessageDependencies{
		UserRepo:    userRepo,
		MessageRepo: messageRepo,
		SocialRepo:  socialRepo,
		Notifier:    notificationService,
		Emitter:     hub,
		Logger:      logger,
	})
	hub.UseMessageSender(messageService)

	avatars, err := storage.New(*cfg)
	if err != nil {
		return fmt.Errorf("failed to init avatar storage: %w", err)
	}
	adminService := service.NewAdminService(service.AdminDependencies{
		UserRepo:  userRepo,
		AuditRepo: auditRepo,
		Logger:    logger,
	})
	inventoryService := service.NewInventoryService(service.InventoryDependencies{
		ProductRepo: productRepo,
		SocialRepo:  socialRepo,
		AuditRepo:   auditRepo,
		Logger:      logger,
	})
	orderService := service.NewOrderService(service.OrderDependencies{
		OrderRepo:   orderRepo,
		ProductRepo: productRepo,
		AuditRepo:   auditRepo,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	profileService := service.NewProfileService(service.ProfileDependencies{
		UserRepo:       userRepo,
		SocialRepo:     socialRepo,
		AvatarStore:    avatars,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		Logger:         logger,
	})
	userService := service.NewUserService(service.UserDependencies{
		UserRepo:   userRepo,
		SocialRepo: socialRepo,
		Dispatcher: dispatcher,
	})
	supportService := service.NewSupportService(service.SupportDependencies{
		TicketRepo:  ticketRepo,
		CommentRepo: commentRepo,
		UserRepo:    userRepo,
		AuditRepo:   auditRepo,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	worker.StartNotificationWorker(notificationService)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    int(cfg.Upload.MaxBytes) + 1<<20,
		ErrorHandler: httptransport.ErrorHandler(logger, metrics),
	})
	var limiterStorage fiber.Storage
	if redis.Available() {
		limiterStorage = persistence.NewLimiterStorage(redis)
	}
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:         logger,
		Metrics:        metrics,
		RequestTimeout: cfg.App.RequestTimeout(),
		Origins:        cfg.App.Origins(),
		RateLimit: httptransport.RateLimit{
			Max:     cfg.RateLimit.Max,
			Window:  cfg.RateLimit.Window(),
			Storage: limiterStorage,
			Prefix:  "api",
		},
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(handlers.HealthDependencies{
			ServiceName: cfg.App.Name,
			Version:     cfg.App.Version,
			Postgres:    pg,
			Redis:       redis,
			Metrics:     metrics,
			Sockets:     hub,
		}),
		Auth:           handlers.NewAuthHandler(authService, cfg.Auth.CookieName, cfg.Auth.CookieSecure),
		Admin:          handlers.NewAdminHandler(adminService, supportService),
		Inventory:      handlers.NewInventoryHandler(inventoryService),
		Orders:         handlers.NewOrdersHandler(orderService),
		Messages:       handlers.NewMessagesHandler(messageService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		Profile:        handlers.NewProfileHandler(profileService),
		Support:        handlers.NewSupportHandler(supportService),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: authMiddleware,
		AuthRateLimit: httptransport.RateLimit{
			Max:     cfg.RateLimit.AuthMax,
			Window:  cfg.RateLimit.Window(),
			Storage: limiterStorage,
			Prefix:  "auth",
		},
		UploadDir:    cfg.Upload.Dir,
		UploadPrefix: cfg.Upload.PublicPrefix,
	})

	go hub.Run(ctx)

	wsServer := hub.Server(net.JoinHostPort(cfg.App.Host, cfg.WebSocket.Port), cfg.WebSocket.Path)
	go func() {
		logger.Info("socket server listening", zap.String("addr", wsServer.Addr), zap.String("path", cfg.WebSocket.Path))
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("socket listen", zap.Error(err))
			cancel()
		}
	}()

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Error("fiber listen", zap.Error(err))
			cancel()
		}
	}()

	waitForShutdown(ctx, logger)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("socket shutdown", zap.Error(err))
	}
	_ = hub.Close()
	return nil
}

func waitForShutdown(ctx context.Context, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("shutting down", zap.Error(ctx.Err()))
	}
}
