package logging

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	logger   *slog.Logger
	loggerMu sync.RWMutex
	logFile  *os.File
	isInited bool
)

// Level is the logging verbosity as written in configuration.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Config holds logger configuration.
type Config struct {
	Level Level
	// OutputPath is a file path; empty writes to stderr.
	OutputPath string
	// Format is "json" or "text".
	Format string
}

// ErrInitialized is returned by Init when the logger is already set up.
var ErrInitialized = errors.New("logger already initialized; call Close first")

// Init initializes the global logger. It must be called at most once before Close.
//
// Example:
//
//	logging.Init(logging.Config{Level: logging.LevelDebug, Format: "json"})
func Init(cfg Config) error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if isInited {
		return ErrInitialized
	}

	var w io.Writer = os.Stderr

	if cfg.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o750); err != nil {
			return err
		}

		f, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return err
		}

		w = f
		logFile = f
	}

	logger = New(w, cfg.Level, cfg.Format)
	isInited = true

	return nil
}

// New builds a standalone logger writing to w.
func New(w io.Writer, level Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level.slog()}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

func (l Level) slog() slog.Level {
	switch Level(strings.ToLower(string(l))) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Close releases the log file, if any. Init may be called again afterwards.
func Close() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if !isInited {
		return nil
	}

	var err error
	if logFile != nil {
		err = logFile.Close()
		logFile = nil
	}

	logger = nil
	isInited = false

	return err
}

// GetLogger returns the global logger, defaulting to info-level text on stderr.
func GetLogger() *slog.Logger {
	loggerMu.RLock()
	if isInited {
		l := logger
		loggerMu.RUnlock()

		return l
	}
	loggerMu.RUnlock()

	loggerMu.Lock()
	defer loggerMu.Unlock()

	if !isInited {
		logger = New(os.Stderr, LevelInfo, "text")
		isInited = true
	}

	return logger
}
