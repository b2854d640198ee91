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

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cuongbtq/job-pipeline/internal/api"
	"github.com/cuongbtq/job-pipeline/internal/api/handler"
	"github.com/cuongbtq/job-pipeline/internal/api/router"
	"github.com/cuongbtq/job-pipeline/internal/config"
	"github.com/cuongbtq/job-pipeline/internal/executor"
	"github.com/cuongbtq/job-pipeline/internal/observability"
	"github.com/cuongbtq/job-pipeline/internal/pipeline"
	"github.com/cuongbtq/job-pipeline/shared/logger"
	"github.com/cuongbtq/job-pipeline/shared/rabbitmq"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// options holds command-line flag values
type options struct {
	configPath     string
	interval       float64
	maxCount       int
	statusInterval float64
	poolSize       int
	verbose        bool
	seed           uint64
	executorKind   string
	timeUnit       time.Duration
	httpPort       int
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run a batch of emulated jobs through the submit, completion and status stages",
		Long: `Submits max jobs, one every interval seconds, processes them with ncon
concurrent workers per stage and logs a status line every statusinterval seconds.

When every job has finished, a report is printed to stdout:

  Jobid;Runtime;Roundtriptime

Examples:
  pipeline -i 2 -m 20 -s 15 -c 10
  pipeline -m 5 -i 0 -s 1 --time-unit 100ms -v
  pipeline --config configs/pipeline/config.yaml --http-port 8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := run(cmd, opts); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "Path to configuration file (default $PIPELINE_CONFIG_PATH or "+config.DefaultConfigPath+")")
	flags.Float64VarP(&opts.interval, "interval", "i", defaults.Pipeline.Interval.Seconds(), "Seconds between job submissions")
	flags.IntVarP(&opts.maxCount, "max", "m", defaults.Pipeline.MaxCount, "Number of jobs to submit")
	flags.Float64VarP(&opts.statusInterval, "statusinterval", "s", defaults.Pipeline.StatusInterval.Seconds(), "Seconds between status requests")
	flags.IntVarP(&opts.poolSize, "ncon", "c", defaults.Pipeline.PoolSize, "Concurrent workers per submit/completion stage")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	flags.Uint64Var(&opts.seed, "seed", defaults.Pipeline.Seed, "Seed for the simulated work durations")
	flags.StringVar(&opts.executorKind, "executor", defaults.Pipeline.Executor, "Executor kind (simulated|shell)")
	flags.DurationVar(&opts.timeUnit, "time-unit", defaults.Pipeline.TimeUnit, "Wall-clock length of one simulated second")
	flags.IntVar(&opts.httpPort, "http-port", defaults.Server.Port, "Status server port (0 disables)")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	start := time.Now()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && opts.verbose {
		log.Println("No .env file found, using environment variables or flags")
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	applyFlags(cmd.Flags(), opts, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging, opts.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting job pipeline",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	defer metrics.Shutdown(context.Background())

	exec, err := executor.New(cfg.Pipeline.Executor, executor.NewDelays(cfg.Pipeline.Seed), cfg.Pipeline.TimeUnit)
	if err != nil {
		return fmt.Errorf("failed to initialize executor: %w", err)
	}

	deps := pipeline.Deps{
		Logger:   appLogger.Logger,
		Executor: exec,
		Metrics:  metrics,
	}

	if cfg.RabbitMQ.Enabled {
		rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()

		deps.Publisher = rabbitClient
		appLogger.Info("RabbitMQ connection established")
	}

	p, err := pipeline.New(pipeline.Config{
		Interval:       cfg.Pipeline.Interval,
		MaxCount:       cfg.Pipeline.MaxCount,
		StatusInterval: cfg.Pipeline.StatusInterval,
		PoolSize:       cfg.Pipeline.PoolSize,
		StatusPoolSize: cfg.Pipeline.StatusPoolSize,
	}, deps)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	if cfg.Server.Port > 0 {
		srv := api.NewServer(api.ServerConfig{
			Port:            cfg.Server.Port,
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			IdleTimeout:     cfg.Server.IdleTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			Environment:     cfg.App.Environment,
		}, &handler.Dependencies{
			Logger: appLogger.Logger,
			Jobs:   p.Registry(),
			Stats:  p,
		}, router.Options{
			MetricsHandler: metricsHandler,
			HTTPMetrics:    metrics,
		})

		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			if err := srv.Shutdown(context.Background()); err != nil {
				appLogger.Error("HTTP server shutdown failed", slog.Any("error", err))
			}
		}()
	}

	report, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	if _, err := report.WriteTo(cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	appLogger.Info(fmt.Sprintf("Program completed in %.2f seconds", time.Since(start).Seconds()))
	return nil
}

// loadConfig resolves the config path, loads the file and applies env overrides
func loadConfig(opts *options) (*config.Config, error) {
	configPath := opts.configPath
	explicit := configPath != ""
	if !explicit {
		if envPath := os.Getenv("PIPELINE_CONFIG_PATH"); envPath != "" {
			configPath = envPath
			explicit = true
		} else {
			configPath = config.DefaultConfigPath
		}
	}

	cfg, err := config.LoadOrDefault(configPath, explicit)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// applyFlags overrides config values with flags set on the command line
func applyFlags(flags *pflag.FlagSet, opts *options, cfg *config.Config) {
	if flags.Changed("interval") {
		cfg.Pipeline.Interval = seconds(opts.interval)
	}
	if flags.Changed("max") {
		cfg.Pipeline.MaxCount = opts.maxCount
	}
	if flags.Changed("statusinterval") {
		cfg.Pipeline.StatusInterval = seconds(opts.statusInterval)
	}
	if flags.Changed("ncon") {
		cfg.Pipeline.PoolSize = opts.poolSize
	}
	if flags.Changed("seed") {
		cfg.Pipeline.Seed = opts.seed
	}
	if flags.Changed("executor") {
		cfg.Pipeline.Executor = opts.executorKind
	}
	if flags.Changed("time-unit") {
		cfg.Pipeline.TimeUnit = opts.timeUnit
	}
	if flags.Changed("http-port") {
		cfg.Server.Port = opts.httpPort
	}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig, verbose bool) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        logger.LevelFor(cfg.Level, verbose),
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.TimeOnly,
	}

	return logger.New(loggerCfg)
}

// initRabbitMQ initializes the RabbitMQ event publisher
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
