// Package bootstrap builds the clients shared by the service binaries from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/cuongbtq/cloudprint/internal/config"
	"github.com/cuongbtq/cloudprint/internal/formatter"
	"github.com/cuongbtq/cloudprint/internal/printjob/service"
	"github.com/cuongbtq/cloudprint/internal/printjob/storage"
	"github.com/cuongbtq/cloudprint/shared/database"
	"github.com/cuongbtq/cloudprint/shared/logger"
	"github.com/cuongbtq/cloudprint/shared/rabbitmq"
	"github.com/joho/godotenv"
)

// LoadEnv loads a .env file from the working directory when one exists
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}
}

// ConfigPath returns the value of envVar, or fallback when it is unset
func ConfigPath(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

// Logger initializes and configures the application logger
func Logger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// Database opens the job database and applies the schema
func Database(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*database.Client, *storage.Storage, error) {
	client, err := database.NewClient(&database.Config{
		Driver:          cfg.Driver,
		DSN:             cfg.DSN,
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStorage(client.GetDB(), logger)
	if err := store.Migrate(ctx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return client, store, nil
}

// RabbitMQ connects to the broker and declares the job queue
func RabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}, logger)
}

// JobOptions maps the printing section onto job service options. Settings the
// file leaves out keep the service defaults.
func JobOptions(cfg *config.PrintingConfig, logger *slog.Logger) []service.Option {
	opts := []service.Option{service.WithDefaultLanguage(Language(cfg, logger))}
	if cfg.DefaultMaxRetries != nil {
		opts = append(opts, service.WithDefaultMaxRetries(*cfg.DefaultMaxRetries))
	}
	return opts
}

// Language resolves the configured default content language
func Language(cfg *config.PrintingConfig, logger *slog.Logger) formatter.Language {
	lang, ok := formatter.ParseLanguage(cfg.DefaultLanguage)
	if !ok {
		logger.Warn("Unknown default language, using fallback",
			slog.String("configured", cfg.DefaultLanguage),
			slog.String("language", string(lang)),
		)
	}
	return lang
}
