package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mcoot/linkguard/internal/api"
	"github.com/mcoot/linkguard/internal/config"
	"github.com/mcoot/linkguard/internal/factory"
)

func main() {
	configPath := flag.String("config", os.Getenv("LINKGUARD_CONFIG"), "path to the YAML config file")
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(settings.Log.Level),
	}))
	slog.SetDefault(logger)

	app, err := factory.New(factory.Config{
		Settings: settings,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	go app.Hub.Run()
	if err := app.Reconciler.Start(); err != nil {
		logger.Error("failed to start reconciler", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if app.Bot != nil {
		if err := app.Bot.Open(); err != nil {
			logger.Error("failed to start discord bot", slog.String("error", err.Error()))
			os.Exit(1)
		}
	} else {
		logger.Warn("no discord bot token configured, chat notifications are disabled")
	}

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = settings.Server.Host
	serverConfig.Port = settings.Server.Port
	server := api.NewServer(app.Router, serverConfig, logger)
	if err := server.Listen(); err != nil {
		logger.Error("failed to listen", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", settings.Storage.Type),
		slog.String("public_url", settings.Server.PublicURL))

	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			exitCode = 1
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		// Close the hub first so open event streams end
		app.Hub.Close()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			exitCode = 1
		}
	}

	app.Reconciler.Stop()
	if err := app.Close(); err != nil {
		logger.Error("closing application", slog.String("error", err.Error()))
		exitCode = 1
	}

	logger.Info("server stopped")
	os.Exit(exitCode)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
