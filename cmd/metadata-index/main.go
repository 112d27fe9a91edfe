// main.go — точка входа Metadata Index.
// Порядок: config → logger → хранилище → кэш и сервис → HTTP-сервер.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/bigkaa/goartstore/metadata-index/internal/api/handlers"
	"github.com/bigkaa/goartstore/metadata-index/internal/api/middleware"
	"github.com/bigkaa/goartstore/metadata-index/internal/config"
	"github.com/bigkaa/goartstore/metadata-index/internal/database"
	"github.com/bigkaa/goartstore/metadata-index/internal/server"
	"github.com/bigkaa/goartstore/metadata-index/internal/service"
	"github.com/bigkaa/goartstore/metadata-index/internal/storage/attr"
	"github.com/bigkaa/goartstore/metadata-index/internal/storage/postgres"
	"github.com/bigkaa/goartstore/metadata-index/internal/storage/sqlstore"
)

// startupTimeout — время на подключение к хранилищу при старте.
const startupTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := config.SetupLogger(cfg)
	logger.Info("Metadata Index запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("store_backend", cfg.StoreBackend),
	)

	store, checker, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища", slog.String("error", err.Error()))
		log.Fatalf("Ошибка инициализации хранилища: %v", err)
	}
	defer closeStore()

	cache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	entries := service.NewEntryService(store, cache, logger)

	healthHandler := handlers.NewHealthHandler(checker)
	apiHandler := handlers.NewAPIHandler(healthHandler, entries, logger)

	srv := server.New(cfg, logger, apiHandler,
		middleware.RequestLogger(logger),
		middleware.MetricsMiddleware(),
	)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		closeStore()
		log.Fatalf("Сервер завершился с ошибкой: %v", err)
	}

	logger.Info("Metadata Index остановлен")
}

// openStore открывает хранилище записей выбранного бэкенда.
// Возвращает хранилище, проверку готовности и функцию закрытия.
func openStore(cfg *config.Config, logger *slog.Logger) (service.EntryStore, handlers.ReadinessChecker, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		if err := database.Migrate(cfg, logger); err != nil {
			return nil, nil, nil, err
		}
		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return postgres.New(pool), database.NewReadinessChecker("PostgreSQL", pool), pool.Close, nil

	case config.BackendSQL:
		s, err := sqlstore.Open(ctx, cfg.SQLDriver, cfg.SQLDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("База данных открыта", slog.String("driver", cfg.SQLDriver))
		checker := database.NewReadinessChecker(cfg.SQLDriver, database.PingFunc(s.DB().PingContext))
		return s, checker, func() { _ = s.Close() }, nil

	case config.BackendFiles:
		s, err := attr.New(cfg.DataDir)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("Каталог записей открыт", slog.String("data_dir", cfg.DataDir))
		return s, database.NewReadinessChecker("Каталог записей", s), func() {}, nil
	}

	return nil, nil, nil, fmt.Errorf("неизвестный бэкенд хранилища %q", cfg.StoreBackend)
}
