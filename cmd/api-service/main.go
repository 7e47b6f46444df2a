package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuongbtq/cloudprint/internal/api/handler"
	"github.com/cuongbtq/cloudprint/internal/api/router"
	"github.com/cuongbtq/cloudprint/internal/bootstrap"
	"github.com/cuongbtq/cloudprint/internal/config"
	"github.com/cuongbtq/cloudprint/internal/formatter"
	"github.com/cuongbtq/cloudprint/internal/printing"
	"github.com/cuongbtq/cloudprint/internal/printjob/service"
	"github.com/cuongbtq/cloudprint/shared/rabbitmq"
	"github.com/gin-gonic/gin"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	bootstrap.LoadEnv()

	configPath := flag.String("config",
		bootstrap.ConfigPath("API_SERVICE_CONFIG_PATH", "configs/api-service/config.yaml"),
		"Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.Logger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx := context.Background()

	dbClient, store, err := bootstrap.Database(ctx, &cfg.Database, appLogger.Component("storage"))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	appLogger.Info("Database connection established", slog.String("driver", dbClient.Driver()))

	opts := bootstrap.JobOptions(&cfg.Printing, appLogger.Logger)

	var rabbitClient *rabbitmq.Client
	if cfg.QueueEnabled() {
		rabbitClient, err = bootstrap.RabbitMQ(&cfg.RabbitMQ, appLogger.Component("rabbitmq"))
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()

		opts = append(opts, service.WithPublisher(rabbitClient))
		appLogger.Info("RabbitMQ connection established")
	} else {
		appLogger.Warn("RabbitMQ not configured, jobs are stored without being dispatched")
	}

	jobs := service.NewService(store, formatter.New(appLogger.Logger), appLogger.Component("jobs"), opts...)

	printers := printing.NewRegistry(
		printing.NewProvider(cfg.Printing),
		appLogger.Component("printing"),
		printing.WithRecorder(jobs),
	)

	r := initRouter(cfg, appLogger.Logger, jobs, printers, dbClient.HealthCheck)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Shutting down server...", slog.String("signal", sig.String()))
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.Any("error", err))
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, jobs *service.Service, printers *printing.Registry, health func(context.Context) error) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(&handler.Dependencies{
		Logger:      logger,
		Jobs:        jobs,
		Printers:    printers,
		HealthCheck: health,
		ServiceName: cfg.App.Name,
	})
}
