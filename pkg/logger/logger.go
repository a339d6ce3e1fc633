package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	mu           sync.RWMutex

	// level is shared by the global logger and every child derived from it
	level = zap.NewAtomicLevel()
)

func parseLevel(text string) (zapcore.Level, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(text)); err != nil {
		return zapLevel, fmt.Errorf("invalid log level %q: %w", text, err)
	}
	return zapLevel, nil
}

func build(atomic zap.AtomicLevel, development bool) (*zap.Logger, error) {
	var config zap.Config
	if development {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}
	config.Level = atomic
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return config.Build(zap.Fields(zap.String("service", "cityinfo")))
}

// New builds a standalone zap logger. Development mode writes human-readable
// console output; otherwise entries are JSON with ISO8601 timestamps.
func New(levelText string, development bool) (*zap.Logger, error) {
	zapLevel, err := parseLevel(levelText)
	if err != nil {
		return nil, err
	}
	return build(zap.NewAtomicLevelAt(zapLevel), development)
}

// Init replaces the global logger. The CLI calls it once the config is known,
// after a bootstrap logger has been used to report config problems.
func Init(levelText string, development bool) error {
	zapLevel, err := parseLevel(levelText)
	if err != nil {
		return err
	}
	l, err := build(level, development)
	if err != nil {
		return err
	}
	level.SetLevel(zapLevel)

	mu.Lock()
	previous := globalLogger
	globalLogger = l
	mu.Unlock()

	if previous != nil {
		_ = previous.Sync()
	}
	return nil
}

// SetLevel changes the level of the global logger and of loggers already
// handed out by Get
func SetLevel(levelText string) error {
	zapLevel, err := parseLevel(levelText)
	if err != nil {
		return err
	}
	level.SetLevel(zapLevel)
	return nil
}

// Get returns the global logger instance
func Get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger == nil {
		// Return a no-op logger if not initialized
		return zap.NewNop()
	}
	return globalLogger
}

// Sync flushes any buffered log entries
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
