// Package logging provides structured logging functionality.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "fundvest", "logs", "fundvest.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	if cfg.File {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stdout
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	return zerolog.New(writer).
		With().
		Timestamp().
		Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// WithOrderID adds an order ID to the logger context.
func WithOrderID(logger zerolog.Logger, orderID string) zerolog.Logger {
	return logger.With().Str("order_id", orderID).Logger()
}

// WithFund adds a fund name to the logger context.
func WithFund(logger zerolog.Logger, fundName string) zerolog.Logger {
	return logger.With().Str("fund", fundName).Logger()
}

// WithUser adds a user ID to the logger context.
func WithUser(logger zerolog.Logger, userID string) zerolog.Logger {
	return logger.With().Str("user_id", userID).Logger()
}

// LogOrder logs an order lifecycle event.
func LogOrder(logger zerolog.Logger, orderID, fundName, side, status string) {
	logger.Info().
		Str("event", "order").
		Str("order_id", orderID).
		Str("fund", fundName).
		Str("side", side).
		Str("status", status).
		Msg("Order update")
}

// LogSettlement logs a settlement outcome.
func LogSettlement(logger zerolog.Logger, orderID string, success bool, err error) {
	event := logger.Info().
		Str("event", "settlement").
		Str("order_id", orderID).
		Bool("success", success)
	if err != nil {
		event = logger.Warn().
			Str("event", "settlement").
			Str("order_id", orderID).
			Bool("success", success).
			Err(err)
	}
	event.Msg("Order settled")
}

// LogSIPExecution logs a scheduler execution for one plan.
func LogSIPExecution(logger zerolog.Logger, planID, userID, fundName, orderID string) {
	logger.Info().
		Str("event", "sip_execution").
		Str("plan_id", planID).
		Str("user_id", userID).
		Str("fund", fundName).
		Str("order_id", orderID).
		Msg("SIP executed")
}
