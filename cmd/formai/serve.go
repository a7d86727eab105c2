package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/formai/engine/internal/api"
	"github.com/formai/engine/internal/config"
	"github.com/formai/engine/internal/generation"
	"github.com/formai/engine/internal/logger"
	"github.com/formai/engine/internal/metrics"
	"github.com/formai/engine/internal/storage"
	"github.com/formai/engine/internal/tracing"
	"github.com/formai/engine/internal/version"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("http-addr", "", "HTTP listen address")
	cmd.Flags().String("grpc-addr", "", "gRPC listen address")
	cmd.Flags().Bool("grpc", true, "Enable the gRPC listener")
	cmd.Flags().String("data-dir", "", "Data directory")
	cmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	return cmd
}

// loadConfig reads defaults, environment and the config file, then applies
// the flags that were set explicitly
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Lookup("http-addr") != nil && flags.Changed("http-addr") {
		cfg.Server.HTTPAddr, _ = flags.GetString("http-addr")
	}
	if flags.Lookup("grpc-addr") != nil && flags.Changed("grpc-addr") {
		cfg.Server.GRPCAddr, _ = flags.GetString("grpc-addr")
	}
	if flags.Lookup("grpc") != nil && flags.Changed("grpc") {
		cfg.Server.GRPCEnabled, _ = flags.GetBool("grpc")
	}
	if flags.Lookup("data-dir") != nil && flags.Changed("data-dir") {
		cfg.Storage.DataDir, _ = flags.GetString("data-dir")
		cfg.Storage.FormsDB = ""
	}
	if flags.Lookup("log-level") != nil && flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg *config.Config) error {
	return logger.Init(&logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		Rotation:   cfg.Logging.Rotation,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
	})
}

func serve(ctx context.Context, cfg *config.Config) error {
	if err := initLogger(cfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.WithComponent("main")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracingConfig := tracing.DefaultTracingConfig()
	tracingConfig.Enabled = cfg.Metrics.TracingEnabled
	tracingConfig.ServiceVersion = version.Get().Version
	tracingConfig.Endpoint = cfg.Metrics.TracingEndpoint
	tracingConfig.ExporterType = cfg.Metrics.TracingExporter
	tracingConfig.Insecure = true
	if cfg.Metrics.TracingSampleRatio < 1 {
		tracingConfig.SamplingStrategy = "ratio"
		tracingConfig.SamplingRatio = cfg.Metrics.TracingSampleRatio
	}
	tracer, err := tracing.NewProvider(ctx, tracingConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	var (
		set           *metrics.Set
		metricsServer *metrics.Server
	)
	builder := storage.NewBuilder().WithConfig(&storage.Config{
		DataDir:            cfg.Storage.DataDir,
		FormsDB:            cfg.Storage.FormsDB,
		PurgeBatchSize:     cfg.Storage.PurgeBatchSize,
		CheckpointInterval: cfg.Storage.CheckpointInterval,
		EnableMetrics:      cfg.Metrics.Enabled,
	})
	if cfg.Metrics.Enabled {
		set = metrics.NewSet()
		builder = builder.WithNamespaceMetrics(set.Namespaces)
		metricsServer = metrics.NewServer(cfg.Metrics.Addr, set.Collector)
	}

	st, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to build storage: %w", err)
	}

	apiConfig := api.Config{
		HTTPAddr:    cfg.Server.HTTPAddr,
		GRPCAddr:    cfg.Server.GRPCAddr,
		GRPCEnabled: cfg.Server.GRPCEnabled,
		Generation: generation.Config{
			Model:      cfg.Generation.Model,
			Timeout:    cfg.Generation.Timeout,
			MaxRetries: cfg.Generation.MaxRetries,
		},
		Metrics: set,
	}
	if cfg.Generation.APIKey != "" {
		apiConfig.Generator = generation.NewAnthropicGenerator(cfg.Generation.APIKey, cfg.Generation.Model, cfg.Generation.MaxTokens)
	}

	server, err := api.NewServer(ctx, apiConfig, st)
	if err != nil {
		_ = st.Close(context.Background())
		return err
	}

	if err := server.Start(ctx); err != nil {
		_ = st.Close(context.Background())
		return fmt.Errorf("failed to start API server: %w", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to start metrics server")
		}
	}

	log.Info().
		Str("version", version.Get().Version).
		Str("http_addr", server.HTTPAddr()).
		Str("grpc_addr", server.GRPCAddr()).
		Str("data_dir", cfg.Storage.DataDir).
		Msg("formai is running")

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := server.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := st.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	log.Info().Msg("Shutdown complete")
	return errors.Join(errs...)
}
