// Package observe carries the agent's logging and metrics.
package observe

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig selects level and destination of the runtime log.
type LoggerConfig struct {
	Level string // debug, info, warn, error; "" = info
	Path  string // "" = DefaultLogPath, "-" = stderr
}

// DefaultLogPath returns ~/.local/state/<app>/<app>.log.
func DefaultLogPath(app string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", app, app+".log"), nil
}

// NewLogger builds a JSON logger writing to the configured file. When the
// file cannot be opened the logger falls back to stderr. The returned
// func flushes and closes the file.
func NewLogger(app string, cfg LoggerConfig) (*zap.Logger, func(), error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
		level = lvl
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.TimeKey = "ts"

	sink, closeSink := openSink(app, cfg.Path)
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, level)
	logger := zap.New(core, zap.AddCaller()).With(zap.String("app", app))

	return logger, func() {
		_ = logger.Sync()
		closeSink()
	}, nil
}

func openSink(app, path string) (zapcore.WriteSyncer, func()) {
	stderr := zapcore.Lock(os.Stderr)
	if path == "-" {
		return stderr, func() {}
	}
	if path == "" {
		p, err := DefaultLogPath(app)
		if err != nil {
			return stderr, func() {}
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return stderr, func() {}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return stderr, func() {}
	}
	return zapcore.Lock(f), func() { _ = f.Close() }
}
