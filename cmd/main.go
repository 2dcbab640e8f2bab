package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/municipal_incidents/internal/config"
	"github.com/shenikar/municipal_incidents/internal/geo"
	v1 "github.com/shenikar/municipal_incidents/internal/handler/http/v1"
	pgrepo "github.com/shenikar/municipal_incidents/internal/repository/postgres"
	sqliterepo "github.com/shenikar/municipal_incidents/internal/repository/sqlite"
	"github.com/shenikar/municipal_incidents/internal/service"
	"github.com/shenikar/municipal_incidents/internal/webhook"
	"github.com/shenikar/municipal_incidents/pkg/logger"
	"github.com/shenikar/municipal_incidents/pkg/postgres"
	redisclient "github.com/shenikar/municipal_incidents/pkg/redis"
	"github.com/shenikar/municipal_incidents/pkg/sqlite"
	"github.com/sirupsen/logrus"

	_ "github.com/shenikar/municipal_incidents/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// repositories - набор хранилищ выбранного бэкенда
type repositories struct {
	incidents service.IncidentRepository
	users     service.UserRepository
	audit     service.AuditRepository
	close     func()
}

// openStorage применяет миграции и собирает репозитории для STORAGE_DRIVER
func openStorage(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*repositories, error) {
	log.WithField("driver", cfg.StorageDriver).Info("Running database migrations...")

	switch cfg.StorageDriver {
	case config.StorageSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := sqlite.Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
		log.WithField("path", cfg.SQLitePath).Info("Successfully opened SQLite database")
		return &repositories{
			incidents: sqliterepo.NewIncidentRepository(db),
			users:     sqliterepo.NewUserRepository(db),
			audit:     sqliterepo.NewAuditRepository(db),
			close:     func() { db.Close() },
		}, nil

	case config.StoragePostgres:
		if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		dbpool, err := postgres.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Info("Successfully connected to PostgreSQL")
		return &repositories{
			incidents: pgrepo.NewIncidentRepository(dbpool),
			users:     pgrepo.NewUserRepository(dbpool),
			audit:     pgrepo.NewAuditRepository(dbpool),
			close:     dbpool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
}

// @title Municipal Incidents API
// @version 1.0
// @description Incident reporting and triage service for city operators.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey UserIDAuth
// @in header
// @name X-User-ID
func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel)

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer repos.close()
	log.Info("Database migrations applied successfully")

	// События публикуются только при настроенном Redis
	var publisher webhook.EventPublisher = webhook.NopPublisher{}
	if cfg.RedisAddr != "" {
		redisClient, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Info("Successfully connected to Redis")

		publisher = webhook.NewRedisEventPublisher(redisClient)
		webhook.NewWebhookWorker(redisClient, log, cfg).Start(ctx)
	} else {
		log.Info("REDIS_ADDR is empty, incident events are disabled")
	}

	// Инициализация сервисов
	identity := service.NewIdentityResolver(repos.users, log)
	incidentService := service.NewIncidentService(repos.incidents, geo.NewH3Indexer(), publisher, log)
	auditService := service.NewAuditService(repos.audit, log)

	// Инициализация хэндлеров
	handler := v1.NewHandler(incidentService, auditService, identity, log, cfg)

	// Настройка Gin роутера
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), v1.RequestID(), v1.RequestLogger(log))
	handler.RegisterRoutes(router)

	// Добавление маршрута для Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	// Запуск сервера в горутине
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Error starting HTTP server: %v", err)
		}
	}()
	log.Infof("HTTP server started on port %s", cfg.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}
	cancel()

	log.Info("Server gracefully stopped")
}
