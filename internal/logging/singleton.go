package logging

import (
	"sync"
)

var (
	instance *Logger
	mu       sync.Mutex
)

// InitLogger initializes the global logger instance.
// Safe to call more than once; later calls replace the previous logger.
func InitLogger(config *LogConfig) error {
	logger, err := NewLogger(config)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	instance = logger
	return nil
}

// GetGlobalLogger returns the singleton logger instance.
// Falls back to a stdout logger when InitLogger has not been called,
// so tests and early init paths never hit a nil logger.
func GetGlobalLogger() *Logger {
	mu.Lock()
	defer mu.Unlock()

	if instance == nil {
		instance, _ = NewLogger(&LogConfig{Level: LevelInfo, File: "stdout"})
	}

	return instance
}
