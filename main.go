package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrey/llm-gateway/internal/app"
	"github.com/newrey/llm-gateway/internal/config"
	"github.com/newrey/llm-gateway/internal/env"
	"github.com/newrey/llm-gateway/internal/logger"
	"github.com/newrey/llm-gateway/internal/version"
	"github.com/newrey/llm-gateway/pkg/container"
	"github.com/newrey/llm-gateway/pkg/format"
)

func main() {
	startTime := time.Now()
	vlog := log.New(log.Writer(), "", 0)
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.PrintVersionInfo(true, vlog)
		os.Exit(0)
	}
	version.PrintVersionInfo(false, vlog)

	lcfg := buildLoggerConfig()
	logInstance, styledLogger, cleanup, err := logger.NewWithTheme(lcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	slog.SetDefault(logInstance)
	styledLogger.Info("initialising", "version", version.Version, "pid", os.Getpid(), "containerised", container.IsContainerised())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		styledLogger.Info("shutdown signal received", "signal", sig.String())
		cancel()
	}()

	cfg, err := config.Load(func() {
		styledLogger.Info("process config reloaded from disk")
	})
	if err != nil {
		logger.FatalWithLogger(logInstance, "failed to load config", "error", err)
	}

	application, err := app.New(cfg, styledLogger, startTime)
	if err != nil {
		logger.FatalWithLogger(logInstance, "failed to create application", "error", err)
	}

	if err := application.Start(ctx); err != nil {
		logger.FatalWithLogger(logInstance, "failed to start application", "error", err)
	}

	<-ctx.Done()

	if err := application.Stop(context.Background()); err != nil {
		styledLogger.Error("error during shutdown", "error", err)
	}

	styledLogger.Info("gateway has shut down", "uptime", format.Duration(time.Since(startTime)))
}

// buildLoggerConfig creates the logger config from environment
// variables, read before the process config file since a config load
// failure needs somewhere to be logged.
func buildLoggerConfig() *logger.Config {
	return &logger.Config{
		Level:      env.GetEnvOrDefault("GATEWAY_LOG_LEVEL", "info"),
		FileOutput: env.GetEnvBoolOrDefault("GATEWAY_FILE_OUTPUT", true),
		LogDir:     env.GetEnvOrDefault("GATEWAY_LOG_DIR", "./logs"),
		MaxSize:    env.GetEnvIntOrDefault("GATEWAY_MAX_SIZE", 100),
		MaxBackups: env.GetEnvIntOrDefault("GATEWAY_MAX_BACKUPS", 5),
		MaxAge:     env.GetEnvIntOrDefault("GATEWAY_MAX_AGE", 30),
		Theme:      env.GetEnvOrDefault("GATEWAY_THEME", "default"),
	}
}
