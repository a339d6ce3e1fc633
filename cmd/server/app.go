package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/your-org/cityinfo/internal/cache"
	"github.com/your-org/cityinfo/internal/config"
	"github.com/your-org/cityinfo/internal/handlers"
	"github.com/your-org/cityinfo/internal/middleware"
	"github.com/your-org/cityinfo/internal/usecases"
)

// Время на аккуратное завершение работы сервера (доделать текущие запросы).
const shutdownTimeout = 30 * time.Second

// App держит вместе все зависимости сервиса и управляет их жизненным циклом.
type App struct {
	config   *config.Config
	logger   *zap.Logger
	store    cityStore
	limiters *cache.ShardedCache[*rate.Limiter]
	usecase  *usecases.CityUsecase
	server   *http.Server

	// Защита от повторного вызова Initialize().
	initOnce sync.Once
	initErr  error

	// Context отменяет все фоновые задачи разом при выключении.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	shutdownOnce sync.Once
}

// NewApp создает заготовку приложения с уже загруженным конфигом.
// Основная настройка происходит в Initialize().
func NewApp(cfg *config.Config, logger *zap.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		config: cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Initialize настраивает все компоненты по принципу "все или ничего".
func (a *App) Initialize() error {
	a.initOnce.Do(func() {
		a.initErr = a.doInitialize()
	})
	return a.initErr
}

// doInitialize собирает приложение.
// Порядок важен: хранилище -> данные -> бизнес-логика -> API.
func (a *App) doInitialize() error {
	store, err := openStore(a.ctx, a.config, a.logger)
	if err != nil {
		return fmt.Errorf("ошибка инициализации хранилища: %w", err)
	}
	a.store = store

	// In-memory хранилище пустое после старта, его заполняем всегда.
	if a.config.Storage.Driver == config.DriverMemory || a.config.Storage.SeedOnStart {
		ctx, cancel := context.WithTimeout(a.ctx, 30*time.Second)
		err := seedStore(ctx, a.store, a.config.Storage.SeedFile, a.logger)
		cancel()
		if err != nil {
			return fmt.Errorf("ошибка загрузки начальных данных: %w", err)
		}
	}

	// Шардированный кэш лимитеров: по одному token bucket на клиента.
	// Неактивные клиенты вытесняются по TTL.
	a.limiters = cache.NewShardedCache[*rate.Limiter](a.config.Cache.Shards, a.config.Cache.TTL)
	a.limiters.StartCleanupWorker()

	a.usecase = usecases.NewCityUsecase(a.store, a.logger, a.config.Concurrency.MaxConcurrentQueries)

	a.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port),
		Handler:      a.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: a.config.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	a.logger.Info("приложение готово к работе")
	return nil
}

// routes настраивает HTTP-роутинг и middleware.
func (a *App) routes() http.Handler {
	cityHandler := handlers.NewCityHandler(a.usecase, a.logger)
	r := chi.NewRouter()

	// Без middleware, чтобы отвечать максимально быстро и надежно.
	health := handlers.NewHealthHandler(a.store, a.config.Storage.Driver).
		WithReporter("rate_limiter", handlers.HealthReporterFunc(a.limiterDetails))
	r.Method(http.MethodGet, "/health", health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.LoggingMiddleware(a.logger))
		r.Use(middleware.RecoveryMiddleware(a.logger))
		r.Use(middleware.MetricsMiddleware)
		r.Use(middleware.TimeoutMiddleware(a.config.Server.RequestTimeout))
		if a.config.RateLimit.Enabled {
			limiter := middleware.NewClientRateLimiter(a.limiters,
				a.config.RateLimit.RequestsPerSecond,
				a.config.RateLimit.Burst,
			)
			r.Use(middleware.RateLimitMiddleware(limiter, a.logger))
		}

		// Один и тот же контроллер обслуживает обе версии API.
		r.Route("/api/v1/cities", cityHandler.Routes)
		r.Route("/api/v2/cities", cityHandler.Routes)
	})

	return r
}

// limiterDetails показывает заполненность кэша лимитеров.
func (a *App) limiterDetails() map[string]interface{} {
	stats := a.limiters.GetStats()

	// Перекос по шардам виден по самому заполненному.
	busiest := 0
	for _, shard := range stats.ShardStats {
		if shard.ItemCount > busiest {
			busiest = shard.ItemCount
		}
	}

	return map[string]interface{}{
		"enabled":             a.config.RateLimit.Enabled,
		"shards":              stats.ShardCount,
		"tracked_clients":     stats.TotalItems,
		"expired_clients":     stats.TotalExpired,
		"busiest_shard_items": busiest,
	}
}

// StartBackgroundJobs запускает фоновые процессы.
func (a *App) StartBackgroundJobs() {
	a.wg.Add(1)
	go a.periodicHealthCheck()
}

// periodicHealthCheck раз в 30 секунд пишет в лог состояние хранилища.
func (a *App) periodicHealthCheck() {
	defer a.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			a.logger.Info("фоновая проверка здоровья остановлена")
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
			if err := a.store.CheckConnection(ctx); err != nil {
				a.logger.Warn("фоновая проверка: проблема с хранилищем", zap.Error(err))
			} else {
				stats := a.limiters.GetStats()
				a.logger.Debug("фоновая проверка: полёт нормальный",
					zap.Int("tracked_clients", stats.TotalItems),
					zap.Int("expired_clients", stats.TotalExpired),
				)
			}
			cancel()
		}
	}
}

// Start запускает сервер в отдельной горутине, чтобы вызывающий мог слушать сигналы ОС.
func (a *App) Start() error {
	if err := a.Initialize(); err != nil {
		return err
	}

	a.StartBackgroundJobs()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("запуск HTTP сервера", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Fatal("сервер упал с ошибкой", zap.Error(err))
		}
	}()

	return nil
}

// Shutdown аккуратно останавливает приложение, дожидаясь текущих запросов.
func (a *App) Shutdown() error {
	var shutdownErr error

	a.shutdownOnce.Do(func() {
		a.logger.Info("начинаем остановку приложения...")

		// 1. Сигнал всем фоновым задачам остановиться
		a.cancel()

		// 2. Останавливаем прием новых HTTP запросов
		if a.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := a.server.Shutdown(ctx); err != nil {
				a.logger.Error("ошибка при остановке сервера", zap.Error(err))
				shutdownErr = err
			}
			cancel()
		}

		// 3. Останавливаем чистильщик кэша лимитеров
		if a.limiters != nil {
			a.limiters.StopCleanupWorker()
		}

		// 4. Закрываем хранилище
		if a.store != nil {
			if err := a.store.Close(); err != nil {
				a.logger.Error("ошибка при закрытии хранилища", zap.Error(err))
				if shutdownErr == nil {
					shutdownErr = err
				}
			}
		}

		// 5. Ждем завершения фоновых горутин
		done := make(chan struct{})
		go func() {
			a.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			a.logger.Info("все фоновые процессы завершены")
		case <-time.After(shutdownTimeout):
			a.logger.Warn("таймаут ожидания завершения процессов (принудительный выход)")
		}

		a.logger.Info("приложение остановлено успешно")
		_ = a.logger.Sync()
	})

	return shutdownErr
}
