package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuongbtq/job-pipeline/internal/executor"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// DefaultConfigPath is used when neither --config nor PIPELINE_CONFIG_PATH is set
	DefaultConfigPath = "configs/pipeline/config.yaml"
)

// Config represents the complete application configuration
type Config struct {
	App      AppConfig      `yaml:"app"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// PipelineConfig holds the job pipeline settings
type PipelineConfig struct {
	Interval       time.Duration `yaml:"interval"`
	MaxCount       int           `yaml:"max_count"`
	StatusInterval time.Duration `yaml:"status_interval"`
	PoolSize       int           `yaml:"pool_size"`
	StatusPoolSize int           `yaml:"status_pool_size"`
	Seed           uint64        `yaml:"seed"`
	Executor       string        `yaml:"executor"`
	TimeUnit       time.Duration `yaml:"time_unit"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// ServerConfig holds status server configuration. Port 0 disables the server.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RabbitMQConfig holds RabbitMQ connection and event exchange configuration
type RabbitMQConfig struct {
	Enabled    bool             `yaml:"enabled"`
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
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds the queue bound to the event exchange. An empty name skips the binding.
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
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

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:        "job-pipeline",
			Version:     "dev",
			Environment: "development",
		},
		Pipeline: PipelineConfig{
			Interval:       2 * time.Second,
			MaxCount:       20,
			StatusInterval: 15 * time.Second,
			PoolSize:       10,
			StatusPoolSize: 2,
			Seed:           444,
			Executor:       executor.KindSimulated,
			TimeUnit:       time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Server: ServerConfig{
			Port:            0,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		RabbitMQ: RabbitMQConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     5672,
			User:     "guest",
			Password: "guest",
			VHost:    "/",
			Exchange: ExchangeConfig{
				Name:    "pipeline_events",
				Type:    "topic",
				Durable: true,
			},
			RoutingKey: "pipeline.job",
			Connection: ConnectionConfig{
				RetryAttempts: 3,
				RetryInterval: 2 * time.Second,
				Heartbeat:     10 * time.Second,
			},
			Publish: PublishConfig{
				RetryAttempts:     3,
				RetryInterval:     100 * time.Millisecond,
				BackoffMultiplier: 2.0,
			},
		},
	}
}

// Load reads and parses the configuration file on top of the defaults
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadOrDefault loads configPath. When the path was not given explicitly and
// the file does not exist, the defaults are returned instead.
func LoadOrDefault(configPath string, explicit bool) (*Config, error) {
	config, err := Load(configPath)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides values from PIPELINE_* environment variables
func (c *Config) ApplyEnv() {
	p := &c.Pipeline
	p.Interval = GetDurationEnv("PIPELINE_INTERVAL", p.Interval)
	p.MaxCount = GetIntEnv("PIPELINE_MAX_COUNT", p.MaxCount)
	p.StatusInterval = GetDurationEnv("PIPELINE_STATUS_INTERVAL", p.StatusInterval)
	p.PoolSize = GetIntEnv("PIPELINE_POOL_SIZE", p.PoolSize)
	p.Executor = GetEnv("PIPELINE_EXECUTOR", p.Executor)
	p.TimeUnit = GetDurationEnv("PIPELINE_TIME_UNIT", p.TimeUnit)
	p.Seed = uint64(GetIntEnv("PIPELINE_SEED", int(p.Seed)))

	c.Logging.Level = GetEnv("PIPELINE_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = GetEnv("PIPELINE_LOG_FORMAT", c.Logging.Format)
	c.Server.Port = GetIntEnv("PIPELINE_HTTP_PORT", c.Server.Port)

	c.RabbitMQ.Enabled = GetBoolEnv("PIPELINE_RABBITMQ_ENABLED", c.RabbitMQ.Enabled)
	c.RabbitMQ.Host = GetEnv("PIPELINE_RABBITMQ_HOST", c.RabbitMQ.Host)
	c.RabbitMQ.User = GetEnv("PIPELINE_RABBITMQ_USER", c.RabbitMQ.User)
	c.RabbitMQ.Password = GetEnv("PIPELINE_RABBITMQ_PASSWORD", c.RabbitMQ.Password)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}

	if c.Server.Port != 0 && (c.Server.Port < MinPort || c.Server.Port > MaxPort) {
		return fmt.Errorf("invalid server port: %d (must be 0 or between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq host is required")
		}

		if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
		}

		if c.RabbitMQ.Exchange.Name == "" {
			return fmt.Errorf("rabbitmq exchange name is required")
		}
	}

	return nil
}

// Validate checks the pipeline section
func (p *PipelineConfig) Validate() error {
	if p.Interval < 0 {
		return fmt.Errorf("pipeline interval must not be negative")
	}

	if p.MaxCount < 0 {
		return fmt.Errorf("pipeline max_count must not be negative")
	}

	if p.StatusInterval < 0 {
		return fmt.Errorf("pipeline status_interval must not be negative")
	}

	if p.PoolSize < 1 {
		return fmt.Errorf("pipeline pool_size must be greater than 0")
	}

	if p.StatusPoolSize < 0 {
		return fmt.Errorf("pipeline status_pool_size must not be negative")
	}

	if p.TimeUnit < 0 {
		return fmt.Errorf("pipeline time_unit must not be negative")
	}

	switch p.Executor {
	case executor.KindSimulated, executor.KindShell:
	default:
		return fmt.Errorf("unknown pipeline executor %q", p.Executor)
	}

	return nil
}
