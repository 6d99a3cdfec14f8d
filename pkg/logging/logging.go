// Package logging builds the zap logger shared by the CLI and the sessions.
package logging

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the level, encoding and optional rotated log file.
type Config struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"` // "console" or "json"
	File       string `toml:"file,omitempty"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// DefaultConfig logs info and above to stderr.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// Validate checks the level and format names.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Level); err != nil {
		return errors.Wrap(err, "logging.level")
	}
	if c.Format != "console" && c.Format != "json" {
		return errors.Errorf("logging.format must be console or json, got %q", c.Format)
	}
	return nil
}

// New returns a logger writing to stderr and, when File is set, to a
// size-rotated file. The returned func flushes buffered entries.
func New(cfg Config) (*zap.SugaredLogger, func(), error) {
	return NewTo(cfg, zapcore.Lock(os.Stderr))
}

// NewTo is New with an explicit console sink.
func NewTo(cfg Config, console zapcore.WriteSyncer) (*zap.SugaredLogger, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	level, _ := zapcore.ParseLevel(cfg.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if cfg.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := []zapcore.Core{zapcore.NewCore(enc, console, level)}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), level))
	}

	logger := zap.New(zapcore.NewTee(cores...)).Sugar()
	return logger, func() { _ = logger.Sync() }, nil
}
