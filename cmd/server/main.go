package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/your-org/cityinfo/internal/config"
	"github.com/your-org/cityinfo/pkg/logger"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "cityinfo",
		Short: "Read-only HTTP API over cities and their points of interest",
		Long: `cityinfo serves paginated, filterable city listings and single-city
lookups with optional points of interest.

Examples:
  # Serve with the embedded seed in memory
  cityinfo serve

  # Serve from SQLite, seeding on start
  APP_STORAGE_DRIVER=sqlite APP_STORAGE_SEED_ON_START=true cityinfo serve

  # Load the seed file into the configured store and exit
  cityinfo seed --config config.yaml
`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config (default: $APP_CONFIG_PATH or ./config.yaml)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load seed cities into the configured persistent store",
		Args:  cobra.NoArgs,
		RunE:  runSeed,
	}
}

// loadConfig загружает конфиг и настраивает глобальный логгер.
// Явно указанный --config обязан загрузиться; файл по умолчанию может отсутствовать,
// тогда работаем на значениях по умолчанию и ENV.
// Возвращает путь, по которому конфиг реально загружен ("" если только defaults + ENV).
func loadConfig() (*config.Config, *zap.Logger, string, error) {
	if err := logger.Init("info", false); err != nil {
		return nil, nil, "", fmt.Errorf("не удалось инициализировать логгер: %w", err)
	}
	log := logger.Get()

	path := configPath
	explicit := path != ""
	if !explicit {
		path = os.Getenv("APP_CONFIG_PATH")
		explicit = path != ""
	}
	if !explicit {
		path = "config.yaml"
	}

	if err := config.Load(path); err != nil {
		if explicit {
			return nil, nil, "", err
		}
		log.Warn("не удалось загрузить конфиг-файл, используем значения по умолчанию и ENV",
			zap.String("path", path),
			zap.Error(err),
		)
		if err := config.Load(""); err != nil {
			return nil, nil, "", fmt.Errorf("критическая ошибка конфигурации: %w", err)
		}
		path = ""
	}

	cfg := config.Get()
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		return nil, nil, "", err
	}
	log = logger.Get()

	log.Info("конфигурация загружена",
		zap.String("server_host", cfg.Server.Host),
		zap.Int("server_port", cfg.Server.Port),
		zap.String("storage_driver", cfg.Storage.Driver),
	)
	return cfg, log, path, nil
}

// reloadConfig перечитывает конфиг по SIGHUP. На лету применяется только
// уровень логирования; остальные настройки вступают в силу после рестарта.
// При ошибке остается прежняя конфигурация.
func reloadConfig(path string) (*config.Config, error) {
	if err := config.Reload(path); err != nil {
		return nil, fmt.Errorf("перезагрузка конфига: %w", err)
	}

	cfg := config.Get()
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return nil, err
	}

	logger.Get().Info("конфигурация перезагружена",
		zap.String("path", path),
		zap.String("log_level", cfg.Log.Level),
	)
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, path, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	app := NewApp(cfg, log)
	if err := app.Start(); err != nil {
		_ = app.Shutdown()
		return fmt.Errorf("ошибка запуска: %w", err)
	}

	// SIGHUP перечитывает конфиг, SIGINT/SIGTERM (Ctrl+C или docker stop) останавливают сервер.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signals)

	for sig := range signals {
		if sig != syscall.SIGHUP {
			break
		}
		if _, err := reloadConfig(path); err != nil {
			logger.Get().Error("конфигурация не перезагружена, работаем на прежней", zap.Error(err))
		}
	}

	return app.Shutdown()
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, log, _, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Storage.Driver == config.DriverMemory {
		return fmt.Errorf("storage driver %q is not persistent, nothing to seed", cfg.Storage.Driver)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	return seedStore(ctx, store, cfg.Storage.SeedFile, log)
}
