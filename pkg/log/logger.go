package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/tengml/tengml/pkg/errors"
)

var (
	globalMu     sync.RWMutex
	globalLogger Logger = NewZerologLogger(os.Stderr, LevelInfo)
)

// SetupLogger configures the global logger.
// format is "json" or "console"; level is one of debug, info, warn, error.
// The new logger also becomes the sink for pkg/errors warnings.
func SetupLogger(level, format string) error {
	return SetupLoggerTo(os.Stderr, level, format)
}

// SetupLoggerTo is SetupLogger with an explicit destination.
func SetupLoggerTo(w io.Writer, level, format string) error {
	lvl, err := ToLogLevel(level)
	if err != nil {
		return err
	}

	var zl *ZerologLogger
	switch strings.ToLower(format) {
	case "", "json":
		zl = NewZerologLogger(w, lvl)
	case "console":
		zl = NewConsoleLogger(w, lvl)
	default:
		return errors.NewValidationError("log_format", "must be json or console", format)
	}

	SetLogger(zl)
	errors.SetZerologWarnFunc(zl.warn)
	return nil
}

// ToLogLevel parses a level name.
func ToLogLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewValidationError("log_level", fmt.Sprintf("unknown level %q", level), level)
	}
}

// GetLogger returns the global logger.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// GetLoggerWithName returns the global logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	return GetLogger().With(ComponentKey, name)
}

// SetLogger replaces the global logger. Passing nil is a no-op.
func SetLogger(l Logger) {
	if l == nil {
		return
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}
