package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/pflag"

	"github.com/ignatzorin/techmarket-sync/internal/config"
	"github.com/ignatzorin/techmarket-sync/internal/db"
	"github.com/ignatzorin/techmarket-sync/internal/domain/repository"
	"github.com/ignatzorin/techmarket-sync/internal/goroutine"
	httpHandlers "github.com/ignatzorin/techmarket-sync/internal/http/handlers"
	httpRouter "github.com/ignatzorin/techmarket-sync/internal/http/router"
	"github.com/ignatzorin/techmarket-sync/internal/infrastructure/pushredis"
	"github.com/ignatzorin/techmarket-sync/internal/infrastructure/pushws"
	"github.com/ignatzorin/techmarket-sync/internal/infrastructure/rest"
	"github.com/ignatzorin/techmarket-sync/internal/logger"
	persistence "github.com/ignatzorin/techmarket-sync/internal/repository"
	"github.com/ignatzorin/techmarket-sync/internal/service"
	"github.com/ignatzorin/techmarket-sync/internal/store"
	"github.com/ignatzorin/techmarket-sync/internal/usecase/account"
	"github.com/ignatzorin/techmarket-sync/internal/usecase/chat"
	"github.com/ignatzorin/techmarket-sync/internal/usecase/negotiation"
	"github.com/ignatzorin/techmarket-sync/internal/usecase/notification"
	"github.com/ignatzorin/techmarket-sync/internal/ws"
)

func main() {
	envFile := pflag.String("env-file", ".env", "путь к .env файлу")
	logLevel := pflag.String("log-level", "", "уровень логирования (по умолчанию debug в development, иначе info)")
	pflag.Parse()

	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.Get().Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	level := *logLevel
	if level == "" {
		level = "info"
		if cfg.Env == "development" {
			level = "debug"
		}
	}
	logger.Init(level)
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}
	log := logger.Get()

	checks := map[string]httpHandlers.HealthCheck{}

	// Журнал компенсаций: PostgreSQL, если задан DATABASE_URL, иначе память.
	var journal repository.CompensationJournal
	if cfg.DatabaseURL != "" {
		dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("main: ошибка подключения к базе: %v", err)
		}
		defer safeClose(dbConn)

		if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
			log.Fatalf("main: ошибка миграций: %v", err)
		}
		journal = persistence.NewCompensationRepository(dbConn)
		checks["journal"] = dbConn.PingContext
	} else {
		log.Warn("main: DATABASE_URL не задан, журнал компенсаций хранится в памяти")
		journal = persistence.NewMemoryCompensationJournal()
	}

	// REST API площадки.
	var tokens rest.TokenSource
	if cfg.ServiceToken != "" {
		tokens = rest.StaticToken(cfg.ServiceToken)
	}
	client := rest.NewClient(cfg.APIBaseURL, tokens, cfg.HTTPClientTimeout)
	requestRepo := rest.NewRequestRepository(client)
	offerRepo := rest.NewOfferRepository(client)
	notificationRepo := rest.NewNotificationRepository(client)
	reviewRepo := rest.NewReviewRepository(client)
	chatRepo := rest.NewChatRepository(client)
	userRepo := rest.NewUserRepository(client)

	// Push-канал.
	var source repository.EventSource
	switch cfg.PushTransport {
	case config.PushTransportRedis:
		redisSource, err := pushredis.NewSource(cfg.RedisURL)
		if err != nil {
			log.Fatalf("main: ошибка подключения к redis: %v", err)
		}
		defer redisSource.Close()
		source = redisSource
		checks["push"] = redisSource.Ping
	default:
		source = pushws.NewSource(cfg.PushURL, tokens)
	}

	stores := store.NewRegistry()

	flows := negotiation.NewService(negotiation.Deps{
		Requests:      requestRepo,
		Offers:        offerRepo,
		Notifications: notificationRepo,
		Reviews:       reviewRepo,
		Stores:        stores,
		Journal:       journal,
		FlowTimeout:   cfg.FlowTimeout,
	})
	worker := negotiation.NewCompensationWorker(offerRepo, journal, cfg.CompensationRetryInterval)
	goroutine.SafeGoWithContext(ctx, worker.Run)

	// Вебсокеты.
	hub := ws.NewHub()
	goroutine.SafeGoWithContext(ctx, hub.Run)

	sessions := service.NewSessionService(requestRepo, source, stores, hub, cfg.PushRetry,
		service.WithSnapshotTTL(cfg.SnapshotTTL),
		service.WithIdleTTL(cfg.StoreIdleTTL),
	)
	defer sessions.Shutdown()
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		sessions.RunJanitor(ctx, time.Minute)
	})

	tokenManager := service.NewTokenManager(cfg.IdentityJWTSecret)

	engine := httpRouter.SetupRouter(cfg, tokenManager, httpRouter.Handlers{
		Health:       httpHandlers.NewHealthHandler(checks),
		WS:           httpHandlers.NewWSHandler(hub, sessions, tokenManager, cfg.AllowedOrigins),
		Requests:     httpHandlers.NewRequestHandler(sessions, flows, cfg.PageSize),
		Negotiation:  httpHandlers.NewNegotiationHandler(flows),
		Chats:        httpHandlers.NewChatHandler(chat.NewOpenChatUseCase(chatRepo, stores), chat.NewSendMessageUseCase(chatRepo, stores)),
		Accounts:     httpHandlers.NewAccountHandler(account.NewEnsureAccountUseCase(userRepo)),
		Notification: httpHandlers.NewNotificationHandler(notification.NewResolveRequestUseCase(notificationRepo)),
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("main: ошибка остановки http сервера")
		}
	}()

	log.WithField("port", cfg.HTTPPort).WithField("push", cfg.PushTransport).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(conn *sqlx.DB) {
	if err := conn.Close(); err != nil {
		logger.Get().WithError(err).Error("main: ошибка закрытия базы")
	}
}
