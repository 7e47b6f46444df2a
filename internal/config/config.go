package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Worker   WorkerConfig   `yaml:"worker"`
	Printing PrintingConfig `yaml:"printing"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration.
// An empty host disables queued dispatch in the API service.
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Durable bool   `yaml:"durable"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name    string `yaml:"name"`
	Durable bool   `yaml:"durable"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	JobTimeout      time.Duration `yaml:"job_timeout"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	SweepSchedule   string        `yaml:"sweep_schedule"`
	StaleAfter      time.Duration `yaml:"stale_after"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// PrintingConfig holds gateway defaults and printer assignments
type PrintingConfig struct {
	DefaultLanguage   string                              `yaml:"default_language"`
	DefaultMaxRetries *int                                `yaml:"default_max_retries"` // nil keeps the built-in default
	GatewayTimeout    time.Duration                       `yaml:"gateway_timeout"`
	RateLimit         float64                             `yaml:"rate_limit"`
	Defaults          map[string]PrinterConfig            `yaml:"defaults"`
	Stores            map[string]map[string]PrinterConfig `yaml:"stores"`
}

// PrinterConfig identifies one gateway printer for a role
type PrinterConfig struct {
	Account   string `yaml:"account"`
	Serial    string `yaml:"serial"`
	SecretKey string `yaml:"secret_key"`
	Language  string `yaml:"language"`
	Endpoint  string `yaml:"endpoint"`
	APIName   string `yaml:"api_name"`
	Copies    int    `yaml:"copies"`
	Encoding  string `yaml:"encoding"`
}

var validRoles = map[string]bool{
	"kitchen": true,
	"receipt": true,
	"label":   true,
	"general": true,
}

// Load reads and parses the configuration file. ${VAR} references are expanded
// from the environment before parsing so secrets can stay out of the file.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// Validate checks the sections shared by every service
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "", "postgres":
		if c.Database.DSN == "" {
			if c.Database.Host == "" {
				return fmt.Errorf("database host is required")
			}
			if c.Database.Port < MinPort || c.Database.Port > MaxPort {
				return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
			}
			if c.Database.Database == "" {
				return fmt.Errorf("database name is required")
			}
		}
	case "sqlite3":
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for sqlite3")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Printing.DefaultMaxRetries != nil && *c.Printing.DefaultMaxRetries < 0 {
		return fmt.Errorf("printing default_max_retries must not be negative")
	}

	if c.Printing.RateLimit < 0 {
		return fmt.Errorf("printing rate_limit must not be negative")
	}

	for role := range c.Printing.Defaults {
		if !validRoles[role] {
			return fmt.Errorf("unknown printer role in defaults: %s", role)
		}
	}

	for store, roles := range c.Printing.Stores {
		for role := range roles {
			if !validRoles[role] {
				return fmt.Errorf("unknown printer role %s for store %s", role, store)
			}
		}
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}

// QueueEnabled reports whether jobs are published for the worker service
func (c *Config) QueueEnabled() bool {
	return c.RabbitMQ.Host != ""
}

// ValidateAPIConfig checks the configuration used by the API service
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.Validate(); err != nil {
		return err
	}

	if c.QueueEnabled() {
		return c.validateRabbitMQ()
	}

	return nil
}

// ValidateWorkerConfig checks the configuration used by the worker service
func (c *Config) ValidateWorkerConfig() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if !c.QueueEnabled() {
		return fmt.Errorf("rabbitmq host is required")
	}

	if err := c.validateRabbitMQ(); err != nil {
		return err
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if c.Worker.RetryDelay < 0 {
		return fmt.Errorf("worker retry_delay must not be negative")
	}

	if c.Worker.SweepSchedule != "" && c.Worker.StaleAfter <= c.Worker.JobTimeout {
		return fmt.Errorf("worker stale_after must be greater than job_timeout when sweep_schedule is set")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	return nil
}
