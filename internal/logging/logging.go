// Package logging is the process-wide leveled logger every component logs
// through. The level is stored atomically so it can be adjusted while
// resources are running.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
)

// Log levels, lowest to most verbose.
const (
	None = iota
	Error
	Warning
	Info
	Debug
)

var (
	currentLevel atomic.Int32
	logger       = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds)
)

func init() {
	currentLevel.Store(Info)
}

// SetLevel sets the global level, clamped to [None, Debug].
func SetLevel(level int) {
	if level < None {
		level = None
	}
	if level > Debug {
		level = Debug
	}
	currentLevel.Store(int32(level))
}

// GetLevel returns the current global level.
func GetLevel() int {
	return int(currentLevel.Load())
}

// ParseLevel converts a level name (case-insensitive) to its constant.
// Unknown names return Info and an error.
func ParseLevel(levelStr string) (int, error) {
	switch strings.ToLower(levelStr) {
	case "none":
		return None, nil
	case "error":
		return Error, nil
	case "warn", "warning":
		return Warning, nil
	case "info":
		return Info, nil
	case "debug":
		return Debug, nil
	}
	return Info, fmt.Errorf("invalid log level string: '%s'", levelStr)
}

// SetupLogging parses levelStr and installs it globally, falling back to
// Info (with a warning) when the string is invalid. Returns the level that
// was installed.
func SetupLogging(levelStr string) int {
	level, err := ParseLevel(levelStr)
	if err != nil {
		logf(Warning, "invalid log level %q, defaulting to info", levelStr)
	}
	SetLevel(level)
	return level
}

// SetOutput redirects the global logger.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

var levelPrefixes = map[int]string{
	Error:   "[ERROR] ",
	Warning: "[WARN] ",
	Info:    "[INFO] ",
	Debug:   "[DEBUG] ",
}

func logf(level int, format string, v ...interface{}) {
	if int32(level) > currentLevel.Load() {
		return
	}
	prefix, ok := levelPrefixes[level]
	if !ok {
		prefix = "[UNKN] "
	}
	if level == Debug {
		// Caller info is resolved only when Debug is active; Caller(2)
		// reaches past Logf to the call site.
		if pc, file, line, ok := runtime.Caller(2); ok {
			funcName := "???"
			if f := runtime.FuncForPC(pc); f != nil {
				funcName = filepath.Base(f.Name())
			}
			prefix = fmt.Sprintf("%s%s:%d:%s ", prefix, filepath.Base(file), line, funcName)
		}
	}
	logger.Println(prefix + fmt.Sprintf(format, v...))
}

// Logf logs a formatted message when level is enabled.
func Logf(level int, format string, v ...interface{}) {
	logf(level, format, v...)
}
