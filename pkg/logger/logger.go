// pkg/logger/logger.go

package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu  sync.RWMutex
	log *zap.Logger
)

// DefaultLogDir is where sharesync keeps its logs unless the config
// overrides it.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "sharesync")
	}
	return filepath.Join(home, ".sharesync", "logs")
}

// DefaultConfig returns the standard zap configuration: JSON encoding to a
// log file plus console output on stderr.
func DefaultConfig(logDir string) zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr", filepath.Join(logDir, "sharesync.log")}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg
}

// InitializeWithConfig builds the global logger from cfg, falling back to
// console-only output when a file path is not writable.
func InitializeWithConfig(cfg zap.Config) {
	for _, path := range cfg.OutputPaths {
		if path == "stdout" || path == "stderr" {
			continue
		}
		if err := ensureLogPath(path); err != nil {
			cfg.OutputPaths = []string{"stderr"}
			break
		}
	}

	built, err := cfg.Build()
	if err != nil {
		cfg.OutputPaths = []string{"stderr"}
		built, err = cfg.Build()
		if err != nil {
			panic("failed to initialize logger: " + err.Error())
		}
	}

	mu.Lock()
	log = built
	mu.Unlock()
	zap.ReplaceGlobals(built)
}

// Initialize sets up the global logger with the default configuration.
func Initialize(logDir string) {
	InitializeWithConfig(DefaultConfig(logDir))
}

// InitializeWithFallback never panics: it tries the default configuration
// and falls back to a plain console logger so early CLI failures are still
// visible.
func InitializeWithFallback() {
	defer func() {
		if r := recover(); r != nil {
			fallback, _ := zap.NewDevelopment()
			mu.Lock()
			log = fallback
			mu.Unlock()
			zap.ReplaceGlobals(fallback)
		}
	}()
	Initialize(DefaultLogDir())
}

// L returns the global logger, initializing it if necessary.
func L() *zap.Logger {
	mu.RLock()
	l := log
	mu.RUnlock()
	if l != nil {
		return l
	}
	InitializeWithFallback()
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Sync flushes buffered log entries. Call before the process exits.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if log == nil {
		return nil
	}
	return log.Sync()
}

// ensureLogPath creates the parent directory and makes sure the file is
// creatable with owner-only permissions.
func ensureLogPath(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	return f.Close()
}
