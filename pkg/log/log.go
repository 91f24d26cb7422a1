package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance
	Logger = zerolog.Nop()
)

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool

	// Output receives the live stream (stdout when nil)
	Output io.Writer

	// RunLog, when set, receives a copy of every line without colors
	RunLog io.Writer
}

// Init initializes the global logger
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(string(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	writers := []io.Writer{sink(output, cfg.JSONOutput, false)}
	if cfg.RunLog != nil {
		writers = append(writers, sink(cfg.RunLog, cfg.JSONOutput, true))
	}

	Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Logger()
}

func sink(w io.Writer, jsonOutput, noColor bool) io.Writer {
	if jsonOutput {
		return w
	}
	return zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    noColor,
		TimeFormat: time.RFC3339,
	}
}

// RunLogPath returns the timestamped run log location for a deployment
func RunLogPath(dir, modelType, environment string, at time.Time) string {
	name := fmt.Sprintf("modelctl-%s-%s-%s.log", modelType, environment, at.Format("20060102-150405"))
	return filepath.Join(dir, name)
}

// OpenRunLog creates the log directory if needed and opens path for appending
func OpenRunLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	return f, nil
}

// WithComponent creates a child logger with component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithRunID creates a child logger with run_id field
func WithRunID(runID string) zerolog.Logger {
	return Logger.With().Str("run_id", runID).Logger()
}
