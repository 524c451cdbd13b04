package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger represents a structured logger
type Logger struct {
	logger zerolog.Logger
}

// Fields represents log fields
type Fields map[string]interface{}

// Options configures the logger outputs
type Options struct {
	Level       string
	Environment string
	// File, when set, receives JSON lines in addition to the console.
	File string
	// Fluent, when set, receives every event as a Fluent Bit record.
	Fluent io.Writer
	// Console overrides stdout, mainly for tests.
	Console io.Writer
}

var (
	// Default is the default logger instance
	Default *Logger
)

// Init initializes the default logger and returns a closer for its log file
func Init(opts Options) (io.Closer, error) {
	l, closer, err := New(opts)
	if err != nil {
		return nil, err
	}
	Default = l
	Default.Info().
		Str("level", l.logger.GetLevel().String()).
		Msg("Logger initialized")
	return closer, nil
}

// New builds a logger writing to the console and the optional sinks
func New(opts Options) (*Logger, io.Closer, error) {
	level := getLogLevel(opts.Level, opts.Environment)
	zerolog.TimeFieldFormat = time.RFC3339

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	writers := []io.Writer{zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: time.RFC3339,
	}}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if dir := filepath.Dir(opts.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}
	if opts.Fluent != nil {
		writers = append(writers, opts.Fluent)
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Logger()

	return &Logger{logger: zl}, closer, nil
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// FromWriter returns a JSON logger writing to w at debug level
func FromWriter(w io.Writer) *Logger {
	return &Logger{logger: zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger()}
}

// getLogLevel resolves the level, defaulting to debug outside production
func getLogLevel(levelStr, environment string) zerolog.Level {
	if levelStr == "" {
		if strings.EqualFold(environment, "production") {
			return zerolog.InfoLevel
		}
		return zerolog.DebugLevel
	}

	level, err := zerolog.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// WithFields creates a new logger with fields
func (l *Logger) WithFields(fields Fields) *Logger {
	newLogger := l.logger.With()
	for k, v := range fields {
		newLogger = newLogger.Interface(k, v)
	}
	return &Logger{logger: newLogger.Logger()}
}

// WithField creates a new logger with a single field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// WithError adds an error to the logger
func (l *Logger) WithError(err error) *Logger {
	return &Logger{logger: l.logger.With().Err(err).Logger()}
}

// ForComponent creates a logger tagged with a component name
func (l *Logger) ForComponent(name string) *Logger {
	return &Logger{logger: l.logger.With().Str("component", name).Logger()}
}

// Debug returns a debug event
func (l *Logger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

// Info returns an info event
func (l *Logger) Info() *zerolog.Event {
	return l.logger.Info()
}

// Warn returns a warn event
func (l *Logger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

// Error returns an error event
func (l *Logger) Error() *zerolog.Event {
	return l.logger.Error()
}

// Fatal returns a fatal event
func (l *Logger) Fatal() *zerolog.Event {
	return l.logger.Fatal()
}

// LogError logs err for a component
func (l *Logger) LogError(component string, err error) {
	l.logger.Error().Str("component", component).Err(err).Msg("operation failed")
}

// LogInfo logs a formatted info message
func (l *Logger) LogInfo(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

// Global functions for code paths without an injected logger

func defaultLogger() *Logger {
	if Default == nil {
		l, _, _ := New(Options{})
		Default = l
	}
	return Default
}

// Info logs an info message
func Info(format string, v ...interface{}) {
	defaultLogger().Info().Msgf(format, v...)
}

// Warn logs a warning message
func Warn(format string, v ...interface{}) {
	defaultLogger().Warn().Msgf(format, v...)
}

// Error logs an error message
func Error(format string, v ...interface{}) {
	defaultLogger().Error().Msgf(format, v...)
}

// ForComponent creates a component logger from the default logger
func ForComponent(name string) *Logger {
	return defaultLogger().ForComponent(name)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
