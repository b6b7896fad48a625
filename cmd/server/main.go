package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/cz7host/frp/internal/config"
	"github.com/cz7host/frp/internal/logging"
	"github.com/cz7host/frp/internal/server"
	"github.com/cz7host/frp/internal/telemetry"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("Panic recovered: %v\nStack trace:\n%s\n", r, debug.Stack())
			os.Exit(1)
		}
	}()

	if err := config.LoadEnv(); err != nil {
		fmt.Printf("Failed to load .env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadServer()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logging.InitLogger(&logging.LogConfig{
		File:       cfg.LogFile,
		Level:      cfg.LogLevel,
		MaxSize:    100,
		MaxBackups: 10,
		MaxAge:     30,
	}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger := logging.GetGlobalLogger()
	defer logger.Close()

	logger.Info("Starting CZ7 FRP server in %s mode", cfg.Environment)
	logger.Info("Base domain: %s", cfg.BaseDomain)

	if cfg.OTLPEndpoint != "" {
		logger.Info("Initializing OpenTelemetry tracing...")
		shutdown, err := telemetry.InitTracer(context.Background(), "cz7-frp-server", cfg.OTLPEndpoint)
		if err != nil {
			logger.Error("Failed to initialize tracing: %v", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error("Failed to shutdown tracer: %v", err)
				}
			}()
			logger.Info("OpenTelemetry tracing initialized")
		}
	}

	srv := server.NewServer(cfg)
	if err := srv.Run(); err != nil {
		logger.Error("Server failed: %v", err)
		os.Exit(1)
	}
}
