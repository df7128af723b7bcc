// Package logger writes server logs to a file. The MCP transport owns stdout
// and stderr, so nothing may ever be printed to the console.
package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Environment variables controlling log destination and verbosity.
const (
	envLogPath  = "CRM_MCP_LOG"
	envLogLevel = "CRM_MCP_LOG_LEVEL"
)

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

var (
	std           *log.Logger
	logFile       *os.File
	minLevel      = levelInfo
	isInitialized bool
)

// InitFromEnv initializes the logger using CRM_MCP_LOG or a default path next
// to the executable.
func InitFromEnv() error {
	switch os.Getenv(envLogLevel) {
	case "debug":
		minLevel = levelDebug
	case "warn":
		minLevel = levelWarn
	case "error":
		minLevel = levelError
	}
	path := os.Getenv(envLogPath)
	if path == "" {
		if exePath, err := os.Executable(); err == nil {
			path = filepath.Join(filepath.Dir(exePath), "crm-mcp.log")
		} else {
			path = "./crm-mcp.log"
		}
	}
	return Init(path)
}

// Init opens the log file in append mode, creating parent directories if needed.
func Init(path string) error {
	if isInitialized {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	logFile = f
	std = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds)
	isInitialized = true
	return nil
}

// Close closes the underlying log file, if open.
func Close() error {
	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		return err
	}
	return nil
}

// Debugf logs fine-grained diagnostics (cache hits, pacing decisions).
func Debugf(format string, args ...any) { write(levelDebug, "DEBUG", format, args...) }

// Infof logs informational messages.
func Infof(format string, args ...any) { write(levelInfo, "INFO", format, args...) }

// Warnf logs warnings.
func Warnf(format string, args ...any) { write(levelWarn, "WARN", format, args...) }

// Errorf logs errors.
func Errorf(format string, args ...any) { write(levelError, "ERROR", format, args...) }

func write(lv level, tag string, format string, args ...any) {
	if lv < minLevel {
		return
	}
	if std == nil {
		// Fallback: initialize with default if not already.
		_ = InitFromEnv()
	}
	if std != nil {
		std.Printf("[%s] %s", tag, fmt.Sprintf(format, args...))
	}
}
