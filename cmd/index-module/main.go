// Точка входа Index Module — реестр идентификаторов данных.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// собирает хранилища, авторизацию, сервисный слой и API handlers,
// запускает topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/index-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/index-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/index-module/internal/auth"
	"github.com/bigkaa/goartstore/index-module/internal/config"
	"github.com/bigkaa/goartstore/index-module/internal/database"
	"github.com/bigkaa/goartstore/index-module/internal/dist"
	"github.com/bigkaa/goartstore/index-module/internal/repository"
	"github.com/bigkaa/goartstore/index-module/internal/server"
	"github.com/bigkaa/goartstore/index-module/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Index Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("index_driver", cfg.IndexDriver),
	)

	if os.Getenv("IM_DEPHEALTH_GROUP") == "" {
		logger.Warn("IM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД (index, alias, auth)
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Хранилища
	indexStore, err := repository.NewIndexStore(pool, cfg.IndexDriver)
	if err != nil {
		logger.Error("Ошибка создания хранилища индекса", slog.String("error", err.Error()))
		os.Exit(1)
	}
	aliasStore := repository.NewAliasStore(pool)
	users := repository.NewAuthRepositoryFromPool(pool)

	// 6. Авторизация: Basic по таблице пользователей, остальное — policy engine
	var policy auth.PolicyEngine
	if cfg.AuthzURL != "" {
		policy = auth.NewPolicyClient(cfg.AuthzURL, cfg.AuthzTimeout, logger)
		logger.Info("Policy engine настроен", slog.String("url", cfg.AuthzURL))
	}
	gate := auth.NewGate(users, policy,
		auth.NewDecisionCache(cfg.AuthzCacheSize, cfg.AuthzCacheMaxTTL),
		auth.GateConfig{
			Discoverable:   cfg.AreRecordsDiscoverable,
			DiscoveryAuthz: cfg.GlobalDiscoveryAuthz,
		},
		logger,
	)

	// 7. Сервисы
	indexSvc := service.NewIndexService(indexStore, gate, service.PrefixSettingsFromConfig(cfg), logger)
	aliasSvc := service.NewAliasService(aliasStore, gate, logger)
	healthSvc := service.NewHealthService(indexStore, func(ctx context.Context) error {
		return database.HealthCheck(ctx, pool)
	}, logger)

	// 8. Глобальный резолвер DIST
	resolver, err := dist.New(cfg.Dist, cfg.DistTimeout, logger)
	if err != nil {
		logger.Error("Ошибка конфигурации DIST", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 9. topologymetrics — мониторинг зависимостей
	var deps handlers.DependencyReporter
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthParams{
		ServiceID:     "index-module",
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PGConnURL:     cfg.DatabaseURL(),
		AuthzURL:      cfg.AuthzURL,
		Dist:          cfg.Dist,
		CheckInterval: cfg.DephealthCheckInterval,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
	} else {
		defer dephealthSvc.Stop()
		deps = dephealthSvc
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 10. API handler
	apiHandler := handlers.NewAPIHandler(
		handlers.NewHealthHandler(database.NewReadinessChecker(pool), deps),
		indexSvc,
		aliasSvc,
		healthSvc,
		gate,
		resolver,
		cfg.DRSServiceInfo,
		logger,
	)

	// 11. JWT (опционально): bearer-токены проверяются до policy engine
	var jwtVerifier *middleware.JWTVerifier
	if cfg.JWTJWKSURL != "" {
		jwtVerifier, err = middleware.NewJWTVerifier(cfg.JWTJWKSURL, cfg.JWTIssuer, cfg.JWTLeeway, logger)
		if err != nil {
			logger.Error("Ошибка создания JWT verifier", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("JWT verifier инициализирован",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	}

	// 12. HTTP-сервер
	srv := server.New(cfg, logger, apiHandler, jwtVerifier)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
