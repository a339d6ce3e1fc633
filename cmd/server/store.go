package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/cityinfo/internal/config"
	"github.com/your-org/cityinfo/internal/domain"
	"github.com/your-org/cityinfo/internal/repositories"
)

const (
	// Настройки для проверки здоровья хранилища при старте.
	// Даем базе немного времени "проснуться", прежде чем сдаваться.
	healthCheckRetries    = 5
	healthCheckRetryDelay = 2 * time.Second
)

// cityStore описывает все, что приложению нужно от хранилища городов.
type cityStore interface {
	domain.CityRepository
	domain.CitySeeder
	domain.HealthChecker
	Close() error
}

var (
	_ cityStore = (*repositories.MemoryRepository)(nil)
	_ cityStore = (*repositories.SQLiteRepository)(nil)
	_ cityStore = (*repositories.ReindexerRepository)(nil)
	_ cityStore = (*repositories.MongoRepository)(nil)
)

// newStore создает хранилище по имени драйвера из конфига.
func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cityStore, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return repositories.NewMemoryRepository(logger), nil
	case config.DriverSQLite:
		return repositories.NewSQLiteRepository(cfg.SQLite.Path, logger)
	case config.DriverReindexer:
		return repositories.NewReindexerRepository(
			cfg.Reindexer.DSN,
			cfg.Reindexer.Namespace,
			cfg.Reindexer.MaxConnections,
			logger,
		)
	case config.DriverMongo:
		return repositories.NewMongoRepository(ctx,
			cfg.Mongo.URI,
			cfg.Mongo.Database,
			cfg.Mongo.Collection,
			logger,
		)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// openStore подключается к хранилищу с повторными попытками:
// база может стартовать медленнее приложения.
// Каждая попытка проверяет связь и наличие коллекций (создает их при отсутствии).
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cityStore, error) {
	var err error

	for attempt := 0; attempt < healthCheckRetries; attempt++ {
		if attempt > 0 {
			logger.Info("повторная попытка подключения к хранилищу",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", healthCheckRetryDelay),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(healthCheckRetryDelay):
			}
		}

		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		store, initErr := newStore(connectCtx, cfg, logger)
		if initErr != nil {
			cancel()
			err = initErr
			logger.Warn("не удалось создать клиент хранилища",
				zap.Int("attempt", attempt+1),
				zap.Error(initErr),
			)
			continue
		}

		if checkErr := store.CheckConnection(connectCtx); checkErr != nil {
			cancel()
			store.Close()
			err = checkErr
			logger.Warn("нет связи с хранилищем",
				zap.Int("attempt", attempt+1),
				zap.Error(checkErr),
			)
			continue
		}

		if ensureErr := store.EnsureCollections(connectCtx); ensureErr != nil {
			cancel()
			store.Close()
			err = ensureErr
			logger.Warn("проблема с коллекциями",
				zap.Int("attempt", attempt+1),
				zap.Error(ensureErr),
			)
			continue
		}
		cancel()

		logger.Info("хранилище инициализировано",
			zap.String("driver", cfg.Storage.Driver),
			zap.Int("attempts", attempt+1),
		)
		return store, nil
	}

	return nil, fmt.Errorf("не удалось подключиться к хранилищу %s после %d попыток: %w",
		cfg.Storage.Driver, healthCheckRetries, err)
}

// seedStore загружает начальные данные (встроенные или из seed_file).
func seedStore(ctx context.Context, store domain.CitySeeder, seedFile string, logger *zap.Logger) error {
	cities, err := repositories.LoadSeed(seedFile)
	if err != nil {
		return err
	}
	if err := store.SeedCities(ctx, cities); err != nil {
		return fmt.Errorf("seed cities: %w", err)
	}

	logger.Info("начальные данные загружены",
		zap.Int("cities", len(cities)),
		zap.String("seed_file", seedFile),
	)
	return nil
}
