package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log levels
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

type Logger struct {
	*log.Logger
	writer io.WriteCloser
	level  int
}

func NewLogger(config *LogConfig) (*Logger, error) {
	// Expand home directory in log file path
	logFile := config.File
	if strings.HasPrefix(logFile, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		logFile = filepath.Join(homeDir, logFile[2:])
	}

	var writer io.WriteCloser
	if logFile == "" || logFile == "stdout" {
		writer = os.Stdout
	} else {
		// Create log directory if it doesn't exist
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		// Set up log rotation
		writer = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    config.MaxSize, // MB
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge, // days
			Compress:   true,
		}
	}

	level, ok := levelOrder[strings.ToLower(config.Level)]
	if !ok {
		level = levelOrder[LevelInfo]
	}

	// Create logger with timestamp and file:line prefix
	logger := log.New(writer, "", log.LstdFlags|log.Lshortfile)

	return &Logger{
		Logger: logger,
		writer: writer,
		level:  level,
	}, nil
}

func (l *Logger) Close() error {
	if l.writer == os.Stdout {
		return nil
	}
	return l.writer.Close()
}

func (l *Logger) logf(level int, prefix, format string, v ...interface{}) {
	if level < l.level {
		return
	}
	l.Output(3, fmt.Sprintf(prefix+format, v...))
}

// Log methods
func (l *Logger) Debug(format string, v ...interface{}) {
	l.logf(levelOrder[LevelDebug], "[DEBUG] ", format, v...)
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.logf(levelOrder[LevelInfo], "[INFO] ", format, v...)
}

func (l *Logger) Warn(format string, v ...interface{}) {
	l.logf(levelOrder[LevelWarn], "[WARN] ", format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.logf(levelOrder[LevelError], "[ERROR] ", format, v...)
}
